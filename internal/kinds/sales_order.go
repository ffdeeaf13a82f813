package kinds

import (
	"fmt"
	"strconv"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

const fieldLines = "lines"

// lineItemKinds maps the item_type of an order line to its kind.
var lineItemKinds = map[string]string{
	"plant":   Plant,
	"product": Product,
}

func salesOrderPipeline() migration.Pipeline {
	return migration.Pipeline{
		Descriptor: migration.KindDescriptor{
			Kind:              SalesOrder,
			Collection:        "sales_orders",
			FilterSoftDeletes: true,
			DependsOn:         []string{Customer, Plant, Product},
		},
		Transform: transformSalesOrder,
	}
}

func transformSalesOrder(tc *migration.TransformContext, raw source.Entity) error {
	doc := baseDocument(raw)
	number := raw.String("number")
	doc["number"] = number
	if doc.String(fieldName) == "" {
		doc[fieldName] = "Order " + number
	}
	doc["status"] = raw.String("status")
	doc["order_date"] = raw.String("order_date")

	customer, err := ref(tc, Customer, raw, "customer_id")
	if err != nil {
		return err
	}
	doc["customer"] = customer

	lines, total, err := orderLines(tc, raw)
	if err != nil {
		return err
	}
	doc[fieldLines] = lines
	doc["total"] = total

	tc.Out.Put(raw.ID(), doc)
	return nil
}

// orderLines parses the embedded JSON array of order lines. Each line gets
// a key derived from the order id and its position.
func orderLines(tc *migration.TransformContext, raw source.Entity) ([]any, float64, error) {
	if !raw.Has(fieldLines) {
		return []any{}, 0, nil
	}
	var data []byte
	switch v := raw.Fields[fieldLines].(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil, 0, migration.MalformedEntityError(raw.ID(), fieldLines, fmt.Errorf("unexpected type %T", v))
	}

	value, err := jason.NewValueFromBytes(data)
	if err != nil {
		return nil, 0, migration.MalformedEntityError(raw.ID(), fieldLines, err)
	}
	objects, err := value.ObjectArray()
	if err != nil {
		return nil, 0, migration.MalformedEntityError(raw.ID(), fieldLines, err)
	}

	lines := make([]any, 0, len(objects))
	total := 0.0
	for i, obj := range objects {
		line, amount, err := orderLine(tc, raw.ID(), i, obj)
		if err != nil {
			return nil, 0, err
		}
		lines = append(lines, line)
		total += amount
	}
	return lines, total, nil
}

func orderLine(tc *migration.TransformContext, orderID string, i int, obj *jason.Object) (map[string]any, float64, error) {
	field := fmt.Sprintf("%s[%d]", fieldLines, i)

	itemType, err := obj.GetString(fieldItemType)
	if err != nil {
		return nil, 0, migration.MalformedEntityError(orderID, field, err)
	}
	kind, ok := lineItemKinds[itemType]
	if !ok {
		return nil, 0, migration.MalformedEntityError(orderID, field, fmt.Errorf("unknown item type %q", itemType))
	}
	itemID, err := obj.GetInt64("item_id")
	if err != nil {
		return nil, 0, migration.MalformedEntityError(orderID, field, err)
	}
	qty, err := obj.GetFloat64("qty")
	if err != nil {
		return nil, 0, migration.MalformedEntityError(orderID, field, err)
	}
	// price is optional on free lines
	price, _ := obj.GetFloat64("price")

	item, err := tc.Ref(kind, source.FormatID(kind, itemID))
	if err != nil {
		return nil, 0, err
	}
	amount := qty * price
	return map[string]any{
		"key":    tc.Identity.ChildKey(orderID, fieldLines, strconv.Itoa(i)),
		"item":   item.Map(),
		"qty":    qty,
		"price":  price,
		"amount": amount,
	}, amount, nil
}
