// Package models holds the GORM row types for the curricula tables and their
// conversions to and from domain aggregates. Domain types carry no ORM tags.
package models
