// Package identity provides the identity-provider boundary for the account
// change flows: subject lookup, pending-email bookkeeping, credential
// verification and commit, and the social-auth guard.
//
// The package supports two persistence backends, selected via the factory:
//
//	repo, err := identity.NewIdentityRepository("postgres", identity.RepositoryConfig{
//		Pool: pool,
//	})
//
//	svc := identity.NewService(repo,
//		identity.WithMinPasswordLength(8),
//		identity.WithSocialProviders("google", "discord"),
//	)
//
// Email commits go through CommitEmailChange, which re-checks uniqueness and
// swaps the pending email into place as a single atomic step. Subjects whose
// only login is a recognized social provider are refused email and password
// changes by callers consulting HasSocialAuth.
package identity
