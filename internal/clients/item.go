package clients

// Item is the provider-agnostic shape a search result row is normalized
// into. ProductID is the provider's listing identifier; for the shopping
// provider it doubles as the price-compare identifier.
type Item struct {
	ProductID  string
	Title      string
	Price      int64
	Seller     string
	Categories []string
}
