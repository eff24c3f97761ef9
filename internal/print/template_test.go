package print

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
)

func TestRenderReceipt_Golden(t *testing.T) {
	data := json.RawMessage(`{
		"order": {"id": "ord-7", "total": 24},
		"items": [
			{"qty": 2, "name": "Burger", "price": 10},
			{"qty": 1, "name": "Fries", "price": 4}
		]
	}`)

	g := goldie.New(t)
	g.Assert(t, "receipt", []byte(renderTemplate("receipt", data)))
}

func TestRenderTemplate_UnknownIDRendersEmpty(t *testing.T) {
	assert.Empty(t, renderTemplate("kitchen-ticket", json.RawMessage(`{}`)))
}

func TestRenderReceipt_MalformedDataRendersEmpty(t *testing.T) {
	assert.Empty(t, renderTemplate("receipt", json.RawMessage(`{not json`)))
}
