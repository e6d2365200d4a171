//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of the larkauth
// UserStore. It supports any database GORM supports (PostgreSQL, MySQL,
// SQLite, etc.) and is suitable for production deployments requiring
// relational storage.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - users: Local user accounts, unique-indexed by Lark open id
//   - auth_records: One token pair per user, replaced wholesale on login
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	store := gormstore.NewUserStore(db)
//	auth := larkauth.NewFromConfig(cfg, store)
package gorm
