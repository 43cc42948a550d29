package catalog

import (
	"encoding/json"

	"github.com/atvirokodosprendimai/dbmirror/internal/core/domain"
)

// Kind is a mirrored catalog entity. The set is closed: every kind has a
// model, a table and a shape, and Register installs all of them.
type Kind string

const (
	KindProduct  Kind = "Product"
	KindCategory Kind = "Category"
	KindBanner   Kind = "Banner"
	KindSlider   Kind = "Slider"
	KindCart     Kind = "Cart"
	KindSale     Kind = "Sale"
	KindPayment  Kind = "Payment"
)

type entry struct {
	collection string
	newModel   func() Entity
	newSlice   func() any
	schema     string
}

// Entity is implemented by every catalog model through Base.
type Entity interface {
	GetID() string
	SetID(id string)
	TableName() string
}

var kinds = []Kind{KindCategory, KindProduct, KindBanner, KindSlider, KindCart, KindSale, KindPayment}

var entries = map[Kind]entry{
	KindProduct:  {collection: "products", newModel: func() Entity { return &Product{} }, newSlice: func() any { return &[]Product{} }, schema: productSchema},
	KindCategory: {collection: "categories", newModel: func() Entity { return &Category{} }, newSlice: func() any { return &[]Category{} }, schema: categorySchema},
	KindBanner:   {collection: "banners", newModel: func() Entity { return &Banner{} }, newSlice: func() any { return &[]Banner{} }, schema: bannerSchema},
	KindSlider:   {collection: "sliders", newModel: func() Entity { return &Slider{} }, newSlice: func() any { return &[]Slider{} }, schema: sliderSchema},
	KindCart:     {collection: "carts", newModel: func() Entity { return &Cart{} }, newSlice: func() any { return &[]Cart{} }, schema: cartSchema},
	KindSale:     {collection: "sales", newModel: func() Entity { return &Sale{} }, newSlice: func() any { return &[]Sale{} }, schema: saleSchema},
	KindPayment:  {collection: "payments", newModel: func() Entity { return &Payment{} }, newSlice: func() any { return &[]Payment{} }, schema: paymentSchema},
}

// Kinds returns every kind in the order resync announces them. Categories
// come before products so a partially synced mirror never holds products
// whose category is missing.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Names returns Kinds as plain strings.
func Names() []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}

func (k Kind) Valid() bool {
	_, ok := entries[k]
	return ok
}

// Collection is the table name on both stores.
func (k Kind) Collection() string {
	return entries[k].collection
}

func (k Kind) Shape() domain.Shape {
	e := entries[k]
	return domain.Shape{
		Name:       string(k),
		Collection: e.collection,
		IDField:    domain.DefaultIDField,
		Schema:     json.RawMessage(e.schema),
	}
}

// ParseCollection maps a table name (as used in URLs) back to its kind.
func ParseCollection(collection string) (Kind, bool) {
	for _, k := range kinds {
		if entries[k].collection == collection {
			return k, true
		}
	}
	return "", false
}

// New returns a pointer to a zero model of kind.
func New(k Kind) (Entity, bool) {
	e, ok := entries[k]
	if !ok {
		return nil, false
	}
	return e.newModel(), true
}

// NewSlice returns a pointer to an empty slice of kind's model.
func NewSlice(k Kind) (any, bool) {
	e, ok := entries[k]
	if !ok {
		return nil, false
	}
	return e.newSlice(), true
}

// ShapeRegisterer is satisfied by the mirror's shape registry.
type ShapeRegisterer interface {
	Register(typeName string, shape domain.Shape)
}

// Register installs the shape of every kind.
func Register(r ShapeRegisterer) {
	for _, k := range kinds {
		r.Register(string(k), k.Shape())
	}
}
