package model

import (
	"time"

	"github.com/google/uuid"
)

// Caja represents a physical register (till) belonging to a sucursal.
// Sessions reference a Caja but the Caja does not own them.
type Caja struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre     string    `gorm:"type:varchar(60);not null"`
	SucursalID uuid.UUID `gorm:"type:uuid;not null;index"`
	Activa     bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time
}
