package schema

// Client column names. Parsed records and validation rules refer to fields by
// these names.
const (
	ColName          = "name"
	ColTaxIdentifier = "taxIdentifier"
	ColEmail         = "email"
	ColPhone         = "phone"
	ColAddress       = "address"
	ColCity          = "city"
	ColPostalCode    = "postalCode"
	ColCountry       = "country"
	ColClientSince   = "clientSince"
	ColCreditLimit   = "creditLimit"
)

// ClientsKey is the registry key of the client import template.
const ClientsKey = "clients"

// Clients is the client import template.
var Clients = TemplateSpec{
	Key:       ClientsKey,
	Label:     "Clients",
	SheetName: "Clients",
	KeyColumn: ColTaxIdentifier,
	Columns: []Column{
		{Name: ColName, Type: TypeText, Required: true, Description: "Legal or trading name"},
		{Name: ColTaxIdentifier, Type: TypeText, Required: true, Description: "Tax identifier, 8-15 letters or digits"},
		{Name: ColEmail, Type: TypeText, Description: "Primary contact email"},
		{Name: ColPhone, Type: TypeText, Description: "Primary contact phone"},
		{Name: ColAddress, Type: TypeText, Description: "Street address"},
		{Name: ColCity, Type: TypeText},
		{Name: ColPostalCode, Type: TypeText},
		{Name: ColCountry, Type: TypeText, Description: "Two-letter country code"},
		{Name: ColClientSince, Type: TypeDate, Description: "Date the relationship started"},
		{Name: ColCreditLimit, Type: TypeNumber, Description: "Credit limit, zero or more"},
	},
}

func init() {
	Register(Clients)
}
