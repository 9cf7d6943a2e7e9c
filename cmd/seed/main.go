// seed genera un script SQL para poblar el catálogo de ingredientes a partir
// del CSV exportado por el POS anterior (encoding ISO-8859-1).
//
// Columnas esperadas: nombre;unidad;nivel_reorden;costo_unitario
//
// Uso: go run ./cmd/seed [ruta/ingredientes.csv]
// Por defecto busca ingredientes.csv en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/002_seed_ingredients.sql
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type ingredientRow struct {
	name         string
	unit         string
	reorderLevel decimal.Decimal
	costPerUnit  decimal.Decimal
}

var validUnits = map[string]bool{"kg": true, "g": true, "l": true, "ml": true, "pcs": true}

func main() {
	csvPath := "ingredientes.csv"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}
	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	reader := csv.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	reader.Comma = ';'
	reader.FieldsPerRecord = 4
	records, err := reader.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	// Dedup por nombre: la última fila gana (el export repite renglones).
	byName := make(map[string]ingredientRow)
	skipped := 0
	for i, rec := range records {
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "nombre") {
			continue // encabezado
		}
		row, err := parseRow(rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fila %d descartada: %v\n", i+1, err)
			skipped++
			continue
		}
		byName[row.name] = row
	}

	var names []string
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_ingredients.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Catálogo de ingredientes\n")
	out.WriteString("-- Generado desde ingredientes.csv (export del POS anterior)\n\n")
	out.WriteString("INSERT INTO ingredients (id, name, unit, reorder_level, cost_per_unit, current_stock) VALUES\n")
	for i, n := range names {
		row := byName[n]
		sep := ","
		if i == len(names)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  (gen_random_uuid(), '%s', '%s', %s, %s, 0)%s\n",
			escapeSQL(row.name), row.unit, row.reorderLevel, row.costPerUnit, sep)
	}
	out.WriteString("ON CONFLICT (name) DO UPDATE SET\n")
	out.WriteString("  unit = EXCLUDED.unit,\n")
	out.WriteString("  reorder_level = EXCLUDED.reorder_level,\n")
	out.WriteString("  cost_per_unit = EXCLUDED.cost_per_unit;\n")

	fmt.Printf("Generado %s: %d ingredientes, %d filas descartadas\n", outPath, len(names), skipped)
}

func parseRow(rec []string) (ingredientRow, error) {
	name := strings.TrimSpace(rec[0])
	unit := strings.ToLower(strings.TrimSpace(rec[1]))
	if name == "" {
		return ingredientRow{}, fmt.Errorf("nombre vacío")
	}
	if !validUnits[unit] {
		return ingredientRow{}, fmt.Errorf("unidad desconocida %q", unit)
	}
	// El export usa coma decimal.
	reorder, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(rec[2]), ",", "."))
	if err != nil {
		return ingredientRow{}, fmt.Errorf("nivel_reorden %q: %w", rec[2], err)
	}
	cost, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(rec[3]), ",", "."))
	if err != nil {
		return ingredientRow{}, fmt.Errorf("costo_unitario %q: %w", rec[3], err)
	}
	if reorder.IsNegative() || cost.IsNegative() {
		return ingredientRow{}, fmt.Errorf("valores negativos")
	}
	return ingredientRow{name: name, unit: unit, reorderLevel: reorder, costPerUnit: cost}, nil
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
