package model

// Product represents a digital course in the catalogue.
// Price is in whole naira.
type Product struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	Price        int64  `json:"price" yaml:"price"`
	Category     string `json:"category" yaml:"category"`
	Modules      string `json:"modules" yaml:"modules"`
	Duration     string `json:"duration" yaml:"duration"`
	DownloadSize string `json:"downloadSize" yaml:"downloadSize"`
	Format       string `json:"format" yaml:"format"`
	FileURL      string `json:"-" yaml:"fileUrl"`
}
