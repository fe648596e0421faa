// Package password provides argon2id password hashing in PHC string
// format and validation of candidate passwords against the policy
// document's composition rules.
package password
