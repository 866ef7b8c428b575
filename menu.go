package main

import (
	"fmt"
	"strings"

	"qtermsim/internal/gate"
)

// menuItem represents a single gate choice in the menu.
type menuItem struct {
	name   string
	kind   gate.Kind
	symbol string
}

// needsTarget reports whether the item asks for a second qubit after the cursor
// one, which becomes the control.
func (i menuItem) needsTarget() bool {
	return i.kind.Controlled()
}

// menuCategory groups related menu items under a tab.
type menuCategory struct {
	name  string
	items []menuItem
}

// gateMenu defines the gate picker categories and items.
var gateMenu = []menuCategory{
	{
		name: "Single Qubit",
		items: []menuItem{
			{name: "Hadamard", kind: gate.H, symbol: "H"},
			{name: "Pauli-X (NOT)", kind: gate.X, symbol: "X"},
			{name: "Pauli-Y", kind: gate.Y, symbol: "Y"},
			{name: "Pauli-Z", kind: gate.Z, symbol: "Z"},
			{name: "Phase (S)", kind: gate.S, symbol: "S"},
			{name: "T Gate", kind: gate.T, symbol: "T"},
		},
	},
	{
		name: "Controlled",
		items: []menuItem{
			{name: "CNOT", kind: gate.CX, symbol: "●─⊕"},
			{name: "Controlled-Y", kind: gate.CY, symbol: "●─Y"},
			{name: "Controlled-Z", kind: gate.CZ, symbol: "●─●"},
			{name: "Controlled-S", kind: gate.CS, symbol: "●─S"},
		},
	},
}

// renderMenu renders the floating gate-picker popup.
func (m Model) renderMenu() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Add Gate"))
	sb.WriteString("\n")

	// Category tabs
	for i, cat := range gateMenu {
		name := " " + cat.name + " "
		if i == m.menuCat {
			sb.WriteString(activeGateStyle.Render(name))
		} else {
			sb.WriteString(dimStyle.Render(name))
		}
		if i < len(gateMenu)-1 {
			sb.WriteString(dimStyle.Render("│"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Repeat("─", 34)))
	sb.WriteString("\n")

	// Items in the selected category
	cat := gateMenu[m.menuCat]
	for i, item := range cat.items {
		if i == m.menuItem {
			sb.WriteString(menuSelectedStyle.Render(" ▸ "))
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("%-16s", item.name)))
			sb.WriteString(gateStyle.Render(item.symbol))
		} else {
			sb.WriteString("   ")
			sb.WriteString(menuNormalStyle.Render(fmt.Sprintf("%-16s", item.name)))
			sb.WriteString(dimStyle.Render(item.symbol))
		}
		if item.needsTarget() {
			sb.WriteString(dimStyle.Render(" →target"))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(" ↑↓ Select  ←→ Cat  ⏎ Ok  Esc ✕"))

	return menuBorderStyle.Render(sb.String())
}
