//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of the
// larkauth UserStore, designed for deployment on Google Cloud Platform
// with multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following kinds:
//   - LarkUser: Local user accounts
//   - LarkAuthRecord: One token pair per user, keyed by user id
//   - LarkOpenID: open id -> user id index, so lookups are a single Get
//     and the one-user-per-open-id invariant holds under transactions
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewUserStore(client, "") // default namespace
//	auth := larkauth.NewFromConfig(cfg, store)
package gae
