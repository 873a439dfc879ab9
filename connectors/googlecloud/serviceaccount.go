package googlecloud

import (
	"fmt"
	"os"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

type GcpServiceAccount struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// GcpServiceAccountFromFile reads and validates a service account key file.
func GcpServiceAccountFromFile(path string) (*GcpServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account key: %w", err)
	}

	var sa GcpServiceAccount
	if err := jsoniter.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse service account key %s: %w", path, err)
	}
	if err := sa.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service account key %s: %w", path, err)
	}
	return &sa, nil
}

// Validates a GcpServiceAccount, that none of the fields are empty.
func (sa *GcpServiceAccount) Validate() error {
	v := reflect.ValueOf(*sa)
	for i := range v.NumField() {
		if v.Field(i).String() == "" {
			return fmt.Errorf("field %s is empty", v.Type().Field(i).Name)
		}
	}
	return nil
}

func (sa *GcpServiceAccount) ToJSON() ([]byte, error) {
	return jsoniter.Marshal(sa)
}
