package googlecloud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"cloud.google.com/go/auth/credentials/impersonate"
	"google.golang.org/api/option"

	"github.com/PeerDB-io/gcp-inventory/logger"
	"github.com/PeerDB-io/gcp-inventory/shared"
	"github.com/PeerDB-io/gcp-inventory/shared/exceptions"
)

// CredentialConfig selects how API calls authenticate. With neither field set,
// Application Default Credentials are used.
type CredentialConfig struct {
	// service account to impersonate, as an email or projects/-/serviceAccounts/<email>
	ImpersonateServiceAccount string
	// service account key file, also the source identity when impersonating
	CredentialsFile string
	Lifetime        time.Duration
}

// ClientOptions exchanges the configured identity for client options shared by
// every Google API client of a run.
func ClientOptions(ctx context.Context, cfg CredentialConfig) ([]option.ClientOption, error) {
	log := logger.LoggerFromCtx(ctx)

	var keyJSON []byte
	if cfg.CredentialsFile != "" {
		sa, err := GcpServiceAccountFromFile(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		if keyJSON, err = sa.ToJSON(); err != nil {
			return nil, fmt.Errorf("failed to get json: %w", err)
		}
		log.Info("using service account key", "client_email", sa.ClientEmail)
	}

	if cfg.ImpersonateServiceAccount == "" {
		if keyJSON != nil {
			return []option.ClientOption{option.WithCredentialsJSON(keyJSON)}, nil
		}
		log.Info("using application default credentials")
		return nil, nil
	}

	var base *auth.Credentials
	if keyJSON != nil {
		var err error
		base, err = credentials.DetectDefault(&credentials.DetectOptions{
			CredentialsJSON: keyJSON,
			Scopes:          []string{shared.CloudPlatformScope},
		})
		if err != nil {
			return nil, exceptions.NewTransportError(err, "credentials.detect", cfg.CredentialsFile)
		}
	}

	target := TargetPrincipal(cfg.ImpersonateServiceAccount)
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	creds, err := impersonate.NewCredentials(&impersonate.CredentialsOptions{
		TargetPrincipal: target,
		Scopes:          []string{shared.CloudPlatformScope},
		Lifetime:        lifetime,
		Credentials:     base,
	})
	if err != nil {
		return nil, exceptions.NewTransportError(err, "iamcredentials.generateAccessToken", target)
	}

	log.Info("impersonating service account", "target", target, "lifetime", lifetime)
	return []option.ClientOption{option.WithAuthCredentials(creds)}, nil
}

// TargetPrincipal reduces an IAM service account resource name to its email.
func TargetPrincipal(serviceAccount string) string {
	if idx := strings.LastIndex(serviceAccount, "/serviceAccounts/"); idx >= 0 {
		return serviceAccount[idx+len("/serviceAccounts/"):]
	}
	return serviceAccount
}
