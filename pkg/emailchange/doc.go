// Package emailchange implements the token-gated email change flow.
//
// A change starts with RequestEmailChange: preconditions are checked in a
// fixed order (social-auth guard, same-address, availability, credential),
// then a single-use verification token is issued and a link mailed to the
// requested address. The change stays pending until the link is verified;
// until then it can be resent (superseding the previous link) or cancelled.
//
// VerifyEmailChange resolves a link to one of the VerificationStatus values.
// Tokens are consumed atomically before the commit, so of two concurrent
// submissions of the same secret exactly one succeeds. Expired tokens are
// deleted on first sight.
//
// Subjects that authenticate through a social provider are refused; their
// address belongs to the provider.
package emailchange
