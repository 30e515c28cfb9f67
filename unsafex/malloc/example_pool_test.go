package malloc

import "fmt"

func ExamplePool() {
	p, _ := NewPool(NewArena(256))

	b1 := p.Alloc(1)  // rounded up to MinAllocSize
	b2 := p.Alloc(17) // rounded up to a multiple of 8

	fmt.Printf("b1: len=%d cap=%d\n", len(b1), cap(b1))
	fmt.Printf("b2: len=%d cap=%d\n", len(b2), cap(b2))
	fmt.Printf("%+v\n", p.Stats())

	p.Free(b1)
	p.Free(b2)
	fmt.Printf("%+v free blocks=%d\n", p.Stats(), p.FreeListLen())

	// Output:
	// b1: len=1 cap=16
	// b2: len=17 cap=24
	// {Total:256 Allocated:40 Free:168}
	// {Total:256 Allocated:0 Free:240} free blocks=1
}
