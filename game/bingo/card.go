package bingo

// The 3x3 grid is addressed by the index order of the active prompt list,
// not by prompt id values: three rows, three columns, two diagonals.
var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// recompute derives CompletedLines and FullHouse from scratch. Cells keyed
// by prompts no longer on the list contribute nothing, which keeps the
// card honest after a mid-game prompt change.
func recompute(card *Card, prompts []Prompt) {
	filled := make(map[int]bool, 9)
	for i, p := range prompts {
		if i >= 9 {
			break
		}
		if _, ok := card.Cells[p.ID]; ok {
			filled[i] = true
		}
	}

	lines := 0
	for _, line := range winningLines {
		if filled[line[0]] && filled[line[1]] && filled[line[2]] {
			lines++
		}
	}

	card.CompletedLines = lines
	card.FullHouse = len(filled) == 9
}
