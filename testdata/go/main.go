package main

import "fmt"

// helper has a single path.
func helper() int {
	return 42
}

// classify has one path per outcome.
func classify(x int) string {
	if x < 0 {
		return "negative"
	} else if x == 0 {
		return "zero"
	}
	return "positive"
}

// sum either skips the loop or runs its body.
func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func main() {
	fmt.Println(helper(), classify(-1), sum([]int{1, 2}))
}
