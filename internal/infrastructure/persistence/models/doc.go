// Package models contains GORM persistence models for aggregates whose
// domain shape does not map onto one table row, such as run history with
// its JSON error details. Catalog entities carry their own gorm tags.
package models
