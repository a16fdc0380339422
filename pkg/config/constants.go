package config

const (
	EnvPrefix = "ENROLLHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "ENROLLHUB_DB_DSN"
	EnvDBHost = "ENROLLHUB_DB_HOST"
	EnvDBUser = "ENROLLHUB_DB_USER"
	EnvDBName = "ENROLLHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
