package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the identity and timestamps every catalog table shares. The
// id is a UUID assigned once on create and copied verbatim to the mirror.
type Base struct {
	ID        string    `gorm:"column:id;primaryKey;type:text" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (b *Base) GetID() string   { return b.ID }
func (b *Base) SetID(id string) { b.ID = id }

type Product struct {
	Base
	Name        string  `gorm:"column:name;not null" json:"name"`
	Slug        string  `gorm:"column:slug;not null" json:"slug"`
	Description string  `gorm:"column:description;not null" json:"description"`
	Price       float64 `gorm:"column:price;not null" json:"price"`
	Stock       int64   `gorm:"column:stock;not null" json:"stock"`
	CategoryID  *string `gorm:"column:category_id" json:"category_id"`
	ImageURL    string  `gorm:"column:image_url;not null" json:"image_url"`
	Active      bool    `gorm:"column:active;not null" json:"active"`
}

func (Product) TableName() string { return "products" }

type Category struct {
	Base
	Name     string  `gorm:"column:name;not null" json:"name"`
	Slug     string  `gorm:"column:slug;not null" json:"slug"`
	ParentID *string `gorm:"column:parent_id" json:"parent_id"`
}

func (Category) TableName() string { return "categories" }

type Banner struct {
	Base
	Title    string `gorm:"column:title;not null" json:"title"`
	ImageURL string `gorm:"column:image_url;not null" json:"image_url"`
	LinkURL  string `gorm:"column:link_url;not null" json:"link_url"`
	Position int64  `gorm:"column:position;not null" json:"position"`
	Active   bool   `gorm:"column:active;not null" json:"active"`
}

func (Banner) TableName() string { return "banners" }

type Slider struct {
	Base
	Title     string `gorm:"column:title;not null" json:"title"`
	Subtitle  string `gorm:"column:subtitle;not null" json:"subtitle"`
	ImageURL  string `gorm:"column:image_url;not null" json:"image_url"`
	LinkURL   string `gorm:"column:link_url;not null" json:"link_url"`
	SortOrder int64  `gorm:"column:sort_order;not null" json:"sort_order"`
	Active    bool   `gorm:"column:active;not null" json:"active"`
}

func (Slider) TableName() string { return "sliders" }

type Cart struct {
	Base
	CustomerEmail string  `gorm:"column:customer_email;not null" json:"customer_email"`
	Status        string  `gorm:"column:status;not null" json:"status"`
	ItemCount     int64   `gorm:"column:item_count;not null" json:"item_count"`
	Total         float64 `gorm:"column:total;not null" json:"total"`
}

func (Cart) TableName() string { return "carts" }

type Sale struct {
	Base
	CartID        string  `gorm:"column:cart_id;not null" json:"cart_id"`
	CustomerEmail string  `gorm:"column:customer_email;not null" json:"customer_email"`
	Total         float64 `gorm:"column:total;not null" json:"total"`
	Status        string  `gorm:"column:status;not null" json:"status"`
}

func (Sale) TableName() string { return "sales" }

type Payment struct {
	Base
	SaleID    string  `gorm:"column:sale_id;not null" json:"sale_id"`
	Amount    float64 `gorm:"column:amount;not null" json:"amount"`
	Currency  string  `gorm:"column:currency;not null" json:"currency"`
	Provider  string  `gorm:"column:provider;not null" json:"provider"`
	Reference string  `gorm:"column:reference;not null" json:"reference"`
	Status    string  `gorm:"column:status;not null" json:"status"`
}

func (Payment) TableName() string { return "payments" }
