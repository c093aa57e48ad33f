// Package migrations embeds SQL migration scripts used by the SQLite stores.
//
// Why this package exists:
// - It centralizes schema history for the punishment journal and its read models.
// - It allows replay-safe schema evolution without manual operator SQL.
// - It keeps development bootstrap and production upgrades on one code path.
package migrations
