// Package models contains the GORM models of the sync service. Domain
// types stay free of ORM tags; each model converts with ToDomain and
// FromDomain.
package models
