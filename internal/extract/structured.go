package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Offer is one schema.org Offer (or AggregateOffer) entry.
type Offer struct {
	Name          string
	Price         string
	PriceCurrency string
	Image         string
}

// Node is a JSON-LD entity that carries offers.
type Node struct {
	Types      []string
	Name       string
	Image      string
	Offers     []Offer
	OffersList bool // offers was a JSON array
}

// IsProduct reports whether the node is typed Product (or ProductGroup).
func (n Node) IsProduct() bool {
	for _, t := range n.Types {
		if strings.EqualFold(t, "Product") || strings.EqualFold(t, "ProductGroup") {
			return true
		}
	}
	return false
}

// PrimaryOffer returns the offer extraction should read a single price from:
// a lone offer object on any node, or the first offer of a Product.
func (n Node) PrimaryOffer() (Offer, bool) {
	if len(n.Offers) == 0 {
		return Offer{}, false
	}
	if !n.OffersList || n.IsProduct() {
		return n.Offers[0], true
	}
	return Offer{}, false
}

// ParseStructuredData decodes JSON-LD blocks into the nodes that have offers,
// in document order. Top-level arrays and @graph containers are flattened.
// Malformed blocks are skipped.
func ParseStructuredData(blocks []string) []Node {
	var nodes []Node
	for _, block := range blocks {
		dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(block))))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		collectNodes(raw, &nodes)
	}
	return nodes
}

// FirstProduct returns the first Product node that has offers.
func FirstProduct(nodes []Node) (Node, bool) {
	for _, n := range nodes {
		if n.IsProduct() && len(n.Offers) > 0 {
			return n, true
		}
	}
	return Node{}, false
}

func collectNodes(raw any, out *[]Node) {
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			collectNodes(item, out)
		}
	case map[string]any:
		if graph, ok := v["@graph"]; ok {
			collectNodes(graph, out)
		}
		if node, ok := toNode(v); ok {
			*out = append(*out, node)
		}
	}
}

func toNode(m map[string]any) (Node, bool) {
	rawOffers, ok := m["offers"]
	if !ok || rawOffers == nil {
		return Node{}, false
	}

	node := Node{
		Types: stringList(m["@type"]),
		Name:  strings.TrimSpace(scalar(m["name"])),
		Image: imageURL(m["image"]),
	}

	switch o := rawOffers.(type) {
	case []any:
		node.OffersList = true
		for _, item := range o {
			if om, ok := item.(map[string]any); ok {
				node.Offers = append(node.Offers, toOffer(om))
			}
		}
	case map[string]any:
		node.Offers = []Offer{toOffer(o)}
	}
	return node, true
}

func toOffer(m map[string]any) Offer {
	price := scalar(m["price"])
	if price == "" {
		price = scalar(m["lowPrice"])
	}
	if price == "" {
		if spec, ok := m["priceSpecification"].(map[string]any); ok {
			price = scalar(spec["price"])
		}
	}
	return Offer{
		Name:          strings.TrimSpace(scalar(m["name"])),
		Price:         price,
		PriceCurrency: strings.TrimSpace(scalar(m["priceCurrency"])),
		Image:         imageURL(m["image"]),
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func imageURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s := imageURL(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if s := scalar(t["url"]); s != "" {
			return s
		}
		return scalar(t["contentUrl"])
	}
	return ""
}
