package catalog

// JSON Schemas for the mirrored field sets. Keys are column names because
// records are read straight from the tables. SQLite hands booleans back as
// integers, so boolean columns accept both.

const productSchema = `{
	"type": "object",
	"required": ["id", "name", "slug", "price"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"slug": {"type": "string"},
		"description": {"type": "string"},
		"price": {"type": "number", "minimum": 0},
		"stock": {"type": "integer"},
		"category_id": {"type": ["string", "null"]},
		"image_url": {"type": "string"},
		"active": {"type": ["boolean", "integer"]},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`

const categorySchema = `{
	"type": "object",
	"required": ["id", "name", "slug"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"slug": {"type": "string"},
		"parent_id": {"type": ["string", "null"]},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`

const bannerSchema = `{
	"type": "object",
	"required": ["id", "title"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"image_url": {"type": "string"},
		"link_url": {"type": "string"},
		"position": {"type": "integer"},
		"active": {"type": ["boolean", "integer"]},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`

const sliderSchema = `{
	"type": "object",
	"required": ["id", "title"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"subtitle": {"type": "string"},
		"image_url": {"type": "string"},
		"link_url": {"type": "string"},
		"sort_order": {"type": "integer"},
		"active": {"type": ["boolean", "integer"]},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`

const cartSchema = `{
	"type": "object",
	"required": ["id", "status"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"customer_email": {"type": "string"},
		"status": {"type": "string"},
		"item_count": {"type": "integer", "minimum": 0},
		"total": {"type": "number", "minimum": 0},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`

const saleSchema = `{
	"type": "object",
	"required": ["id", "cart_id", "total", "status"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"cart_id": {"type": "string"},
		"customer_email": {"type": "string"},
		"total": {"type": "number"},
		"status": {"type": "string"},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`

const paymentSchema = `{
	"type": "object",
	"required": ["id", "sale_id", "amount", "currency", "status"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"sale_id": {"type": "string"},
		"amount": {"type": "number"},
		"currency": {"type": "string", "minLength": 3, "maxLength": 3},
		"provider": {"type": "string"},
		"reference": {"type": "string"},
		"status": {"type": "string"},
		"created_at": {"type": "string"},
		"updated_at": {"type": "string"}
	}
}`
