package domain

// CatalogRecord is one entry of the catalog endpoint's asset listing, as
// returned inside the HAL-style "_embedded.records" array.
type CatalogRecord struct {
	Asset    string `json:"asset"`
	TomlInfo *struct {
		Code   string `json:"code"`
		Issuer string `json:"issuer"`
	} `json:"tomlInfo,omitempty"`
}

// CatalogPage is one page of the catalog endpoint's response envelope.
type CatalogPage struct {
	Embedded struct {
		Records []CatalogRecord `json:"records"`
	} `json:"_embedded"`
	Links struct {
		Next *struct {
			Href string `json:"href"`
		} `json:"next,omitempty"`
	} `json:"_links"`
}

// PathRecord is one candidate route returned by the chain's
// strictReceivePaths query.
type PathRecord struct {
	SourceAssetType string
	SourceAssetCode string
	SourceAmount    string
}
