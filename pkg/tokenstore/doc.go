// Package tokenstore persists single-use verification tokens for out-of-band
// identity mutations.
//
// Tokens are keyed by a purpose-scoped identifier ("email-change-<subject id>")
// and looked up by their secret value at verification time. Reissuing a token
// for an identifier supersedes prior tokens rather than adding to them, so a
// stale link can never be replayed after a new request.
//
// # Token lifecycle
//
//	secret, _ := tokenstore.GenerateSecret()
//	vt, err := repo.Create(ctx, "email-change-"+userID.String(), secret, time.Now().UTC().Add(time.Hour))
//
//	// At verification time the secret is the credential:
//	vt, err := repo.GetByValue(ctx, secret)
//	if vt.Expired(time.Now().UTC()) {
//	    repo.ConsumeByID(ctx, vt.ID) // expired tokens are consumed, not retried
//	}
//
//	// Consumption is atomic: under concurrent submissions of the same secret,
//	// exactly one caller gets consumed == true.
//	consumed, err := repo.ConsumeByID(ctx, vt.ID)
//
// Expiry is enforced lazily at verification time. There is no background
// reaper; DeleteExpired exists for storage hygiene and nothing depends on it.
//
// # Storage
//
// Two TokenRepository implementations are provided: PostgreSQL (pgx) and
// file-based JSON storage, selected through NewTokenRepository.
package tokenstore
