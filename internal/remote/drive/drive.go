// Package drive syncs through the user's own cloud drive. Records live as
// one sealed file per record under RootFolder/<collection>/<id>.json. The
// backend cannot push, so the engine polls it via List.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"

	"github.com/cashlia/cashlia-core/pkg/config"
	"github.com/cashlia/cashlia-core/pkg/enums"
	"github.com/cashlia/cashlia-core/pkg/errors"
	"github.com/cashlia/cashlia-core/pkg/logger"
	"github.com/cashlia/cashlia-core/pkg/prefs"
	"github.com/cashlia/cashlia-core/pkg/security"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Adapter struct {
	cfg    config.DriveConfig
	http   *http.Client
	prefs  prefs.Prefs
	cipher *security.Cipher
	log    *logger.Logger

	mu      sync.Mutex
	folders map[string]string // folder path -> drive file id
}

func New(cfg config.DriveConfig, p prefs.Prefs, cipher *security.Cipher, log *logger.Logger) *Adapter {
	return &Adapter{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		prefs:   p,
		cipher:  cipher,
		log:     log,
		folders: map[string]string{},
	}
}

func (a *Adapter) Method() enums.SyncMethod {
	return enums.SyncMethodDrive
}

func (a *Adapter) Save(ctx context.Context, collection, id string, payload []byte) error {
	sealed, err := a.cipher.Encrypt(ctx, payload)
	if err != nil {
		return err
	}
	folderID, err := a.collectionFolder(ctx, collection)
	if err != nil {
		return err
	}
	existing, err := a.findFile(ctx, folderID, fileName(id))
	if err != nil {
		return err
	}
	if existing == "" {
		return a.uploadNew(ctx, folderID, fileName(id), []byte(sealed))
	}
	return a.uploadExisting(ctx, existing, []byte(sealed))
}

func (a *Adapter) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	folderID, err := a.collectionFolder(ctx, collection)
	if err != nil {
		return nil, err
	}
	fileID, err := a.findFile(ctx, folderID, fileName(id))
	if err != nil {
		return nil, err
	}
	if fileID == "" {
		return nil, errors.New(errors.CodeNotFound, "record not found")
	}
	return a.download(ctx, fileID)
}

func (a *Adapter) List(ctx context.Context, collection string) (map[string][]byte, error) {
	folderID, err := a.collectionFolder(ctx, collection)
	if err != nil {
		return nil, err
	}
	files, err := a.listFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(files))
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		payload, err := a.download(ctx, f.ID)
		if err != nil {
			// One unreadable record must not block the rest of the
			// collection.
			a.log.Error(a.log.WithField(ctx, "record_id", collection+"/"+f.Name), "skipping unreadable record", err)
			continue
		}
		out[strings.TrimSuffix(f.Name, ".json")] = payload
	}
	return out, nil
}

func (a *Adapter) Delete(ctx context.Context, collection, id string) error {
	folderID, err := a.collectionFolder(ctx, collection)
	if err != nil {
		return err
	}
	fileID, err := a.findFile(ctx, folderID, fileName(id))
	if err != nil {
		return err
	}
	if fileID == "" {
		return nil
	}
	resp, err := a.do(ctx, http.MethodDelete, a.cfg.BaseURL+"/files/"+fileID, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "delete record")
}

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fileList struct {
	Files []driveFile `json:"files"`
}

// collectionFolder resolves (and creates when missing) the folder the
// collection's records live in, caching ids per adapter.
func (a *Adapter) collectionFolder(ctx context.Context, collection string) (string, error) {
	a.mu.Lock()
	if id, ok := a.folders[collection]; ok {
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	rootID, err := a.ensureFolder(ctx, a.cfg.RootFolder, "root")
	if err != nil {
		return "", err
	}
	id, err := a.ensureFolder(ctx, collection, rootID)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.folders[collection] = id
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) ensureFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		name, parentID, folderMimeType)
	id, err := a.search(ctx, query)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	body, _ := json.Marshal(map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
		"parents":  []string{parentID},
	})
	resp, err := a.do(ctx, http.MethodPost, a.cfg.BaseURL+"/files", "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "create folder"); err != nil {
		return "", err
	}
	var created driveFile
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", errors.Wrap(errors.CodeSync, err, "decode folder")
	}
	return created.ID, nil
}

func (a *Adapter) findFile(ctx context.Context, folderID, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false", name, folderID)
	return a.search(ctx, query)
}

func (a *Adapter) search(ctx context.Context, query string) (string, error) {
	endpoint := a.cfg.BaseURL + "/files?q=" + url.QueryEscape(query) + "&fields=files(id,name)"
	resp, err := a.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "search"); err != nil {
		return "", err
	}
	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return "", errors.Wrap(errors.CodeSync, err, "decode search result")
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].ID, nil
}

func (a *Adapter) listFiles(ctx context.Context, folderID string) ([]driveFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	endpoint := a.cfg.BaseURL + "/files?q=" + url.QueryEscape(query) + "&fields=files(id,name)&pageSize=1000"
	resp, err := a.do(ctx, http.MethodGet, endpoint, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "list files"); err != nil {
		return nil, err
	}
	var list fileList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.Wrap(errors.CodeSync, err, "decode file list")
	}
	return list.Files, nil
}

func (a *Adapter) uploadNew(ctx context.Context, folderID, name string, sealed []byte) error {
	meta, _ := json.Marshal(map[string]any{"name": name, "parents": []string{folderID}})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	metaPart, _ := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	metaPart.Write(meta)
	dataPart, _ := writer.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/octet-stream"}})
	dataPart.Write(sealed)
	writer.Close()

	endpoint := a.cfg.UploadBaseURL + "/files?uploadType=multipart"
	resp, err := a.do(ctx, http.MethodPost, endpoint, "multipart/related; boundary="+writer.Boundary(), buf.Bytes())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "upload record")
}

func (a *Adapter) uploadExisting(ctx context.Context, fileID string, sealed []byte) error {
	endpoint := a.cfg.UploadBaseURL + "/files/" + fileID + "?uploadType=media"
	resp, err := a.do(ctx, http.MethodPatch, endpoint, "application/octet-stream", sealed)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "update record")
}

func (a *Adapter) download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := a.do(ctx, http.MethodGet, a.cfg.BaseURL+"/files/"+fileID+"?alt=media", "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "download record"); err != nil {
		return nil, err
	}
	sealed, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSync, err, "read record")
	}
	return a.cipher.Decrypt(ctx, string(sealed))
}

// do sends an authenticated request. On a 401 it refreshes the access token
// once and replays the request, which is why the body is a byte slice.
func (a *Adapter) do(ctx context.Context, method, endpoint, contentType string, body []byte) (*http.Response, error) {
	token, err := a.prefs.Get(ctx, prefs.KeyDriveToken)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.CodeConfiguration, "drive sync is not configured")
		}
		return nil, err
	}
	resp, err := a.send(ctx, method, endpoint, contentType, token, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()
	token, err = a.refreshToken(ctx)
	if err != nil {
		return nil, err
	}
	return a.send(ctx, method, endpoint, contentType, token, body)
}

func (a *Adapter) send(ctx context.Context, method, endpoint, contentType, token string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSync, err, "drive request failed")
	}
	return resp, nil
}

// refreshToken trades the stored refresh token for a new access token and
// persists it for subsequent requests.
func (a *Adapter) refreshToken(ctx context.Context) (string, error) {
	refresh, err := a.prefs.Get(ctx, prefs.KeyDriveRefreshToken)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", errors.New(errors.CodeUnauthenticated, "drive access token rejected")
		}
		return "", err
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "build refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.CodeSync, err, "refresh drive token")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New(errors.CodeUnauthenticated, "drive refresh token rejected")
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(errors.CodeSync, err, "decode token response")
	}
	if out.AccessToken == "" {
		return "", errors.New(errors.CodeSync, "token response carries no access token")
	}
	if err := a.prefs.Set(ctx, prefs.KeyDriveToken, out.AccessToken); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func checkStatus(resp *http.Response, action string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.New(errors.CodeUnauthenticated, "drive access token rejected").WithDetails(string(body))
	}
	return errors.New(errors.CodeSync, action+" failed with status "+resp.Status).WithDetails(string(body))
}

func fileName(id string) string {
	return id + ".json"
}
