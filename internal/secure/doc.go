// Package secure keeps resolved secrets encrypted in memory.
//
// Values fetched from a backend are sealed in memguard enclaves
// (XSalsa20Poly1305, mlocked where the platform allows) and only decrypted
// while the child environment is assembled. Callers should defer
// memguard.Purge in main so that enclave keys are wiped on exit.
//
// This does not protect against a privileged attacker reading the live
// process, nor against the child process, which receives plaintext in its
// environment.
package secure
