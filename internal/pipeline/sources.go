package pipeline

// Source is one raw CSV file staged into the warehouse.
type Source struct {
	// Name is the staged table name and the step name in run history.
	Name string
	// File is the CSV file name under the data directory.
	File string
	// Columns are the columns the pipeline relies on. Extra columns in the
	// file are staged as-is; missing ones fail the dependent datasets.
	Columns []string
}

// Sources returns the raw inputs of the prep stage.
func Sources() []Source {
	return []Source{
		{
			Name: "sales",
			File: "sales.csv",
			Columns: []string{
				"SalesID", "SalesPersonID", "CustomerID", "ProductID",
				"Quantity", "Discount", "TotalPrice", "SalesDate",
			},
		},
		{
			Name:    "customers",
			File:    "customers.csv",
			Columns: []string{"CustomerID", "CityID"},
		},
		{
			Name:    "cities",
			File:    "cities.csv",
			Columns: []string{"CityID", "CityName", "CountryID"},
		},
		{
			Name:    "countries",
			File:    "countries.csv",
			Columns: []string{"CountryID", "CountryName"},
		},
		{
			Name:    "products",
			File:    "products.csv",
			Columns: []string{"ProductID", "Price", "CategoryID"},
		},
		{
			Name:    "categories",
			File:    "categories.csv",
			Columns: []string{"CategoryID", "CategoryName"},
		},
		{
			Name:    "employees",
			File:    "employees.csv",
			Columns: []string{"EmployeeID", "FirstName", "LastName", "HireDate"},
		},
	}
}
