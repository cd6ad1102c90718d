package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	cardLeft      key.Binding
	cardRight     key.Binding
	cardUp        key.Binding
	cardDown      key.Binding
	phaseLeft     key.Binding
	phaseRight    key.Binding
	addFeature    key.Binding
	editFeature   key.Binding
	deleteFeature key.Binding
	featureInfo   key.Binding
	tagFilter     key.Binding
	clearFilter   key.Binding
	filterMode    key.Binding
	copyFeature   key.Binding
	export        key.Binding
	openDocument  key.Binding
	newBoard      key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "card up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "card down")),
		cardLeft:      key.NewBinding(key.WithKeys("H", "shift+h"), key.WithHelp("H", "move card left")),
		cardRight:     key.NewBinding(key.WithKeys("L", "shift+l"), key.WithHelp("L", "move card right")),
		cardUp:        key.NewBinding(key.WithKeys("K", "shift+k"), key.WithHelp("K", "move card up")),
		cardDown:      key.NewBinding(key.WithKeys("J", "shift+j"), key.WithHelp("J", "move card down")),
		phaseLeft:     key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "move column left")),
		phaseRight:    key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "move column right")),
		addFeature:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new feature")),
		editFeature:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit feature")),
		deleteFeature: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete feature")),
		featureInfo:   key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "feature info")),
		tagFilter:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter tags")),
		clearFilter:   key.NewBinding(key.WithKeys("F", "shift+f"), key.WithHelp("F", "clear filter")),
		filterMode:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "all/any")),
		copyFeature:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy json")),
		export:        key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export")),
		openDocument:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open document")),
		newBoard:      key.NewBinding(key.WithKeys("N", "shift+n"), key.WithHelp("N", "new board")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.addFeature, k.featureInfo, k.editFeature, k.tagFilter, k.export, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.cardLeft, k.cardRight, k.cardUp, k.cardDown, k.phaseLeft, k.phaseRight},
		{k.addFeature, k.editFeature, k.deleteFeature, k.featureInfo, k.copyFeature},
		{k.tagFilter, k.clearFilter, k.filterMode, k.export, k.openDocument, k.newBoard, k.reload, k.toggleHelp, k.quit},
	}
}
