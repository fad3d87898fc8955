// Package storage persists the bot's collections (content, giveaways, users,
// suggestions, admins). Each collection is an independent array-of-records
// document; there is no cross-collection transaction.
//
// Drivers:
//   - "file": one JSON document per collection under a directory,
//     written atomically (temp file + rename)
//   - "sqlite": a single database file (build with -tags sqlite)
package storage
