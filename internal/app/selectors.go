package app

// Map UI selectors. Kept together so layout changes are a one-file fix.
const (
	feedContainer  = `div[role="feed"]`
	feedPlaceLinks = `div[role="feed"] a[href*="/maps/place/"]`
	anyPlaceLinks  = `a[href*="/maps/place/"]`
	resultsReady   = `div[role="feed"], a[href*="/maps/place/"]`
	nextPageButton = `button[aria-label*="Next"]`

	placeTitle     = `h1.DUwDvf`
	anyTitle       = `h1`
	mainLabels     = `div[role="main"] [aria-label]`
	ratingSummary  = `div[role="main"] div.F7nice span`
	addressItem    = `[data-item-id="address"]`
	addressButton  = `button[aria-label^="Address:"]`
	phoneItem      = `[data-item-id^="phone:"]`
	telLinks       = `a[href^="tel:"]`
	websiteItem    = `a[data-item-id="authority"]`
	websiteLabeled = `a[aria-label^="Website"]`
	ogImage        = `meta[property="og:image"]`
	mapLinks       = `a[href*="/maps/"]`
	mainLinks      = `div[role="main"] a[href^="http"]`
)

// searchThisAreaTexts are the labels of the map's "search this area" button.
var searchThisAreaTexts = []string{
	"Search this area", "Search in this area",
	"ابحث في هذه المنطقة", "البحث في هذه المنطقة",
	"ค้นหาบริเวณนี้",
	"In diesem Bereich suchen", "In diesem Gebiet suchen",
	"Rechercher dans cette zone", "Rechercher dans la zone",
	"Cerca in quest'area", "Cerca in questa zona",
	"Buscar en esta zona", "Buscar en esta área", "Cerca en aquesta zona",
}

// nextPageTexts label the result list's pagination button.
var nextPageTexts = []string{
	"Next page", "Next",
	"الصفحة التالية", "التالي",
	"หน้าถัดไป", "ถัดไป",
	"Nächste Seite", "Nächste", "Weiter",
	"Page suivante", "Suivante", "Suivant",
	"Pagina successiva", "Successivo", "Avanti",
	"Página siguiente", "Siguiente", "Següent",
}
