package pipeline

import (
	"github.com/driftwood-labs/salespipe/internal/dag"
)

// StagingTable is the repaired sales table every dataset builds on.
const StagingTable = "stg_sales"

// stagingQuery repairs TotalPrice: rows where it is missing or zero get
// price * quantity - discount, with a missing product price treated as 0.
// All other rows keep their stored value.
const stagingQuery = `
SELECT
    s.* REPLACE (
        CASE
            WHEN s.TotalPrice IS NULL OR s.TotalPrice = 0
                THEN COALESCE(p.Price, 0) * s.Quantity - s.Discount
            ELSE s.TotalPrice
        END AS TotalPrice
    )
FROM sales AS s
LEFT JOIN products AS p ON p.ProductID = s.ProductID`

// Dataset is one flattened, analysis-ready output of the prep stage.
type Dataset struct {
	// Name is the built table name and the step name in run history.
	Name string
	// Description says what the dataset feeds.
	Description string
	// Dependencies are the graph steps this dataset builds on.
	Dependencies []string
	// Query builds the dataset from the staged tables.
	Query string
	// Columns is the documented output column order.
	Columns []string
	// OutputFile is the CSV file name under the cleaned directory.
	OutputFile string
}

// Datasets returns the five prep outputs. Every query left-joins from the
// repaired sales table so the row count always matches the sales row count.
func Datasets() []Dataset {
	return []Dataset{
		{
			Name:         "rfm_analysis",
			Description:  "customer transactions with location, feeds RFM segmentation",
			Dependencies: []string{StagingTable, "customers", "cities", "countries"},
			Query: `
SELECT
    s.CustomerID,
    s.TotalPrice,
    s.SalesDate,
    c.CityID,
    ci.CountryID,
    co.CountryName
FROM stg_sales AS s
LEFT JOIN customers AS c ON c.CustomerID = s.CustomerID
LEFT JOIN cities AS ci ON ci.CityID = c.CityID
LEFT JOIN countries AS co ON co.CountryID = ci.CountryID`,
			Columns:    []string{"CustomerID", "TotalPrice", "SalesDate", "CityID", "CountryID", "CountryName"},
			OutputFile: "cleaned_rfm_analysis.csv",
		},
		{
			Name:         "product_recommendations",
			Description:  "transactions with product category, feeds recommendation models",
			Dependencies: []string{StagingTable, "products", "categories"},
			Query: `
SELECT
    s.SalesID,
    s.CustomerID,
    s.ProductID,
    p.CategoryID,
    cat.CategoryName,
    s.TotalPrice
FROM stg_sales AS s
LEFT JOIN products AS p ON p.ProductID = s.ProductID
LEFT JOIN categories AS cat ON cat.CategoryID = p.CategoryID`,
			Columns:    []string{"SalesID", "CustomerID", "ProductID", "CategoryID", "CategoryName", "TotalPrice"},
			OutputFile: "cleaned_product_recommendations.csv",
		},
		{
			Name:         "sales_forecasting",
			Description:  "dated transaction amounts, feeds time-series forecasting",
			Dependencies: []string{StagingTable},
			Query: `
SELECT
    s.SalesID,
    s.SalesDate,
    s.TotalPrice,
    s.Quantity
FROM stg_sales AS s`,
			Columns:    []string{"SalesID", "SalesDate", "TotalPrice", "Quantity"},
			OutputFile: "cleaned_sales_forecasting.csv",
		},
		{
			Name:         "employee_performance",
			Description:  "transactions with the selling employee, feeds performance reviews",
			Dependencies: []string{StagingTable, "employees"},
			Query: `
SELECT
    s.SalesID,
    s.SalesPersonID,
    e.FirstName,
    e.LastName,
    e.HireDate,
    s.TotalPrice
FROM stg_sales AS s
LEFT JOIN employees AS e ON e.EmployeeID = s.SalesPersonID`,
			Columns:    []string{"SalesID", "SalesPersonID", "FirstName", "LastName", "HireDate", "TotalPrice"},
			OutputFile: "cleaned_employee_performance.csv",
		},
		{
			Name:         "geographical_sales",
			Description:  "transactions with city and country, feeds regional analysis",
			Dependencies: []string{StagingTable, "customers", "cities", "countries"},
			Query: `
SELECT
    s.SalesID,
    s.SalesDate,
    s.TotalPrice,
    s.CustomerID,
    c.CityID,
    ci.CityName,
    ci.CountryID,
    co.CountryName
FROM stg_sales AS s
LEFT JOIN customers AS c ON c.CustomerID = s.CustomerID
LEFT JOIN cities AS ci ON ci.CityID = c.CityID
LEFT JOIN countries AS co ON co.CountryID = ci.CountryID`,
			Columns: []string{
				"SalesID", "SalesDate", "TotalPrice", "CustomerID",
				"CityID", "CityName", "CountryID", "CountryName",
			},
			OutputFile: "cleaned_geographical_sales.csv",
		},
	}
}

// DatasetByName returns the dataset definition with the given name.
func DatasetByName(name string) (Dataset, bool) {
	for _, ds := range Datasets() {
		if ds.Name == name {
			return ds, true
		}
	}
	return Dataset{}, false
}

// BuildGraph wires sources, the staging table, and the datasets into the
// step dependency graph the prep stage executes.
func BuildGraph() (*dag.Graph, error) {
	g := dag.New()

	for _, src := range Sources() {
		g.Add(src.Name)
	}

	g.Add(StagingTable)
	for _, dep := range []string{"sales", "products"} {
		if err := g.Depend(StagingTable, dep); err != nil {
			return nil, err
		}
	}

	for _, ds := range Datasets() {
		g.Add(ds.Name)
		for _, dep := range ds.Dependencies {
			if err := g.Depend(ds.Name, dep); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}
