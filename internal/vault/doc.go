// Package vault resolves the token signing secret.
//
// The secret is either configured literally or read once at startup from a
// HashiCorp Vault KV v2 engine:
//
//	src, err := vault.NewSecretSource("", vault.KVConfig{
//	    Address: "https://vault.example.com:8200",
//	    Mount:   "secret",
//	    Path:    "placegw/jwt",
//	    Key:     "jwt-secret",
//	}, logger)
//	secret, err := src.Secret(ctx)
//
// Address and Token fall back to VAULT_ADDR and VAULT_TOKEN.
package vault
