package shopping

import (
	"github.com/rankowl/rank-tracker/internal/clients"
	"regexp"
	"strconv"
)

var tagPattern = regexp.MustCompile(`</?b>`)

func (i searchItem) normalize() clients.Item {

	price, _ := strconv.ParseInt(i.LPrice, 10, 64)

	var categories []string
	for _, c := range []string{i.Category1, i.Category2, i.Category3, i.Category4} {
		if c != "" {
			categories = append(categories, c)
		}
	}

	return clients.Item{
		ProductID:  i.ProductID,
		Title:      tagPattern.ReplaceAllString(i.Title, ""),
		Price:      price,
		Seller:     i.MallName,
		Categories: categories,
	}
}
