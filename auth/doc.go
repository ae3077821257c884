// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides password hashing, login tokens and key material.

# Passwords

Passwords are hashed with bcrypt before they reach the database:

	hash, err := auth.HashPassword(password)
	err := auth.CheckPassword(hash, password) // ErrInvalidPassword on mismatch

# Login Tokens

Login tokens are HS256 JWTs. The subject is the username and the issuer is
the instance domain. Tokens expire after TokenLifetime (one year):

	token, err := auth.IssueToken(username, domain, secret, time.Now())
	username, err := auth.ParseToken(token, secret) // ErrInvalidToken on failure

The signing secret lives in the jwt_secret table and is created on first use.

# Keys

Every person and instance carries an RSA keypair in PEM form:

	kp, err := auth.GenerateKeypair()
*/
package auth
