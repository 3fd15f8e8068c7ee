package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills an empty primary key before insert so rows get ids on every driver.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *Product) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (c *Customer) BeforeCreate(*gorm.DB) error      { assignID(&c.ID); return nil }
func (a *Address) BeforeCreate(*gorm.DB) error       { assignID(&a.ID); return nil }
func (c *Cart) BeforeCreate(*gorm.DB) error          { assignID(&c.ID); return nil }
func (c *CartItem) BeforeCreate(*gorm.DB) error      { assignID(&c.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error         { assignID(&o.ID); return nil }
func (i *OrderItem) BeforeCreate(*gorm.DB) error     { assignID(&i.ID); return nil }
func (h *OrderHistory) BeforeCreate(*gorm.DB) error  { assignID(&h.ID); return nil }
func (p *ReturnPolicy) BeforeCreate(*gorm.DB) error  { assignID(&p.ID); return nil }
func (r *ReturnRequest) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (i *ReturnItem) BeforeCreate(*gorm.DB) error    { assignID(&i.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error   { assignID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error     { assignID(&d.ID); return nil }
