package config

const (
	EnvPrefix = "CASHLIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreDriverSQLite   = "sqlite"
	StoreDriverDocument = "document"
)
