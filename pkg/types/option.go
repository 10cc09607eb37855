package types

// SelectedOption is one option dimension/value pair on a product variant,
// e.g. {Name: "Size", Value: "M"}. Order matters: backends return the
// dimensions in a stable order shared by every variant of a product.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OptionSelection maps option dimension name to the currently chosen value.
type OptionSelection map[string]string
