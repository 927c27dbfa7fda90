package provider

import "strings"

const (
	stamenCredit = "Map tiles by Stamen Design, under CC BY 3.0. Data by OpenStreetMap, under ODbL"

	stamenWatercolorCredit = "Map tiles by Stamen Design, under CC BY 3.0. Data by OpenStreetMap, under CC BY SA"

	mapStackCredit = "Tiles by MapBox, Data © OpenStreetMap contributors\n" +
		"Tiles by Stamen Design, under CC-BY 3.0 Data © OpenStreetMap contributors, under CC-BY-SA"

	cartoCredit = "Map tiles by CARTO, under CC BY 3.0. Data by OpenStreetMap, under ODbL"

	osmCredit = "© OpenStreetMap contributors"

	esriCredit = "Tiles © Esri. Source: Esri, Maxar, Earthstar Geographics, and the GIS User Community"
)

// Stamen serves one of the classic Stamen styles ("toner", "terrain", ...).
func Stamen(style string) Template {
	credit := stamenCredit
	if style == "watercolor" {
		credit = stamenWatercolorCredit
	}
	return Template{
		Pattern: "http://c.tile.stamen.com/{style}/{z}/{x}/{y}.png",
		Style:   style,
		Credit:  credit,
	}
}

// MapStack serves Stamen tiles passed through a filter chain such as
// "(toner,$fff[difference])". The chain is an opaque URL segment.
func MapStack(transform string) Template {
	return Template{
		Pattern: "http://d.sm.mapstack.stamen.com/{style}/{z}/{x}/{y}.png",
		Style:   transform,
		Credit:  mapStackCredit,
	}
}

// FilterChain composes a base layer and its filters into a map-stack segment:
// FilterChain("toner", "$fff[difference]") == "(toner,$fff[difference])".
func FilterChain(base string, filters ...string) string {
	return "(" + strings.Join(append([]string{base}, filters...), ",") + ")"
}

// Cartodb serves a CARTO basemap ("dark_all", "light_all").
func Cartodb(style string) Template {
	return Template{
		Pattern: "http://cartodb-basemaps-1.global.ssl.fastly.net/{style}/{z}/{x}/{y}.png",
		Style:   style,
		Credit:  cartoCredit,
	}
}

func OpenStreetMap() Template {
	return Template{
		Pattern:    "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Subdomains: []string{"a", "b", "c"},
		Credit:     osmCredit,
	}
}

// EsriWorldImagery addresses tiles row first: .../tile/{z}/{y}/{x}.
func EsriWorldImagery() Template {
	return Template{
		Pattern: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Credit:  esriCredit,
	}
}
