package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var serverFlags = []string{
	"-a", "-d", "-s", "-t", "-r", "-w", "-store", "-l",
	"-redis-addr", "-redis-password", "-redis-db",
	"-kakao-client-id", "-kakao-client-secret", "-kakao-redirect-url",
	"-b", "-o", "-g", "-e", "-u", "-p",
}

// parseFlags overlays command-line flags onto config.
//
//	-a      HTTP bind address (":8080")
//	-d      PostgreSQL DSN
//	-s      base64 signing secret
//	-t, -r  access and refresh token validity ("1h", "336h")
//	-w      per-request store timeout
//	-store  postgres, redis or memory
//	-l      log backend, slog or zerolog
//	-b, -o  S3 bucket and object holding the signing secret
//	-g, -e  S3 region and base endpoint
//	-u, -p  S3 access key and secret
//
// os.Args is filtered through flagx.FilterArgs first, so flags belonging to
// other components (such as -c) are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "base64 signing secret")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.DurationVar(&config.RequestTimeout, "w", config.RequestTimeout, "per-request store timeout")
	fs.StringVar(&config.StoreBackend, "store", config.StoreBackend, "token store backend (postgres, redis, memory)")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend (slog, zerolog)")

	fs.StringVar(&config.RedisAddr, "redis-addr", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database number")

	fs.StringVar(&config.KakaoClientID, "kakao-client-id", config.KakaoClientID, "kakao REST API key")
	fs.StringVar(&config.KakaoClientSecret, "kakao-client-secret", config.KakaoClientSecret, "kakao client secret")
	fs.StringVar(&config.KakaoRedirectURL, "kakao-redirect-url", config.KakaoRedirectURL, "kakao redirect URL")

	fs.StringVar(&config.SecretKeyS3Bucket, "b", config.SecretKeyS3Bucket, "S3 bucket holding the signing secret")
	fs.StringVar(&config.SecretKeyS3Object, "o", config.SecretKeyS3Object, "S3 object holding the signing secret")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 access key")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 secret key")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
