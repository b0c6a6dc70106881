package browser

// ExportButton opens the export menu on the trending page.
var ExportButton = Target{
	Name: "export",
	Strategies: []Strategy{
		XPath(`//button[contains(normalize-space(.), 'Export')]`),
		CSS(`button[aria-label*='Export']`),
		CSS(`button[title*='Export']`),
		XPath(`//*[@role='button'][contains(normalize-space(.), 'Export')]`),
		CSS(`button[data-testid*='export']`),
		CSS(`button[aria-label*='ios_share']`),
		CSS(`[aria-label*='Export']`),
		CSS(`.export-button`),
		CSS(`[class*='export']`),
	},
	ScanSelector: "button",
	Keywords:     []string{"export"},
}

// DownloadCSVOption triggers the CSV download once the menu is open.
var DownloadCSVOption = Target{
	Name: "download_csv",
	Strategies: []Strategy{
		XPath(`//a[contains(normalize-space(.), 'Download CSV')]`),
		XPath(`//button[contains(normalize-space(.), 'Download CSV')]`),
		CSS(`a[aria-label*='Download CSV']`),
		CSS(`button[aria-label*='Download CSV']`),
		CSS(`a[title*='Download CSV']`),
		CSS(`button[title*='Download CSV']`),
		XPath(`//*[@role='menuitem'][contains(normalize-space(.), 'Download CSV')]`),
		CSS(`[role='menuitem'][aria-label*='Download CSV']`),
		CSS(`[role='menuitem'][aria-label*='CSV']`),
		CSS(`a[aria-label*='csv']`),
		CSS(`button[aria-label*='csv']`),
		XPath(`//*[contains(@class, 'menu-item')][contains(normalize-space(.), 'Download CSV')]`),
		XPath(`//*[contains(@class, 'dropdown-item')][contains(normalize-space(.), 'Download CSV')]`),
	},
	ScanSelector: "[role='menuitem'], .menu-item, .dropdown-item, a, button",
	Keywords:     []string{"download csv"},
}
