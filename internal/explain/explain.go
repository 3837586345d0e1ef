// Package explain holds the long-form text printed by `borrowck explain`.
// Examples use the textual CFG syntax accepted by fixtures.
package explain

import (
	"fmt"
	"strings"

	"borrowck/internal/diag"
)

var texts = map[diag.Code]string{
	diag.BorrowUseAfterMove: `
A value was read after it was moved out, or before it was given a value,
on at least one path reaching the use.

    s = struct (v: "a")
    t = move s
    call print(copy s)      // error: s was moved on the line above

Moving transfers ownership; the source place is uninitialized until it is
assigned again. Borrow the value instead of moving it, assign a fresh value
before the use, or copy it if its type is Copy.
`,
	diag.BorrowMovedBorrow: `
A borrow was taken of a place that may have been moved.

    call consume(move s)
    r = &s                  // error

A reference must point at initialized storage. Re-initialize the place or
take the borrow before the move.
`,
	diag.BorrowPartialMoveUse: `
A field of the value was moved out and the value was then used as a whole.

    x = move p.a
    call consume(move p)    // error: p.a is gone

The remaining fields are still usable one by one. Assigning p.a again
restores p as a whole.
`,
	diag.BorrowClosureMovedValue: `
A closure captures a place that may have been moved before the closure is
created.

    call consume(move s)
    k = closure [ref s]     // error

Create the closure before the move, or capture a value that is still owned.
`,
	diag.BorrowAssignIntoMoved: `
An assignment writes into part of a value that has been moved out as a
whole.

    x = move p
    p.a = move y            // error: p itself is uninitialized

Assign the whole value first (p = struct (...)) and then update fields.
`,
	diag.BorrowMoveWhileBorrowed: `
A value was moved while a borrow of it is still in use.

    r = &s
    t = move s              // error
    call print(copy r)      // the borrow is used here

A borrow lives from its creation to the last use of the reference. Move
the value after that last use, or clone it.
`,
	diag.BorrowAssignWhileBorrowed: `
A place was overwritten while a borrow of it is still in use.

    r = &x
    x = 5                   // error
    call print(copy r)

Writing through the owner would change what the reference observes.
Finish using the reference first.
`,
	diag.BorrowAssignImmutable: `
A local that is not declared mut was written while it may still hold a
value. Only reported with [analysis].mutability enabled.

    locals = ["s: S"]
    s = struct (v: "a")
    s = struct (v: "b")     // error

The first write initializes the local and is always allowed. Declare the
local as "s: S mut" to allow later writes.
`,
	diag.BorrowMutOfImmutable: `
A mutable borrow was taken of a local that is not declared mut. Method
calls whose receiver is "mut ref this" count as mutable borrows. Only
reported with [analysis].mutability enabled.

    params = ["v: int[]"]
    call push(recv v, 1)    // error

Borrowing through a reference (recv *m) is a reborrow and is checked by
the type of m instead. Declare the local as "v: int[] mut".
`,
	diag.BorrowMutWhileShared: `
A mutable borrow was taken while a shared borrow of an overlapping place is
in use.

    r = &data[0]
    call push(recv data, 4) // error: push needs mut ref this
    call print(copy r)

Shared borrows promise that the value does not change while they live.
Move the last use of r before the mutable borrow.
`,
	diag.BorrowDoubleMut: `
Two mutable borrows of overlapping places are in use at the same time.

    a = &mut c.items
    b = &mut c.items        // error
    call use(copy a, copy b)

Borrows of distinct fields (c.items and c.meta) do not overlap. Borrows
through an index are treated as covering the whole array.
`,
	diag.BorrowSharedWhileMut: `
A shared borrow was taken while a mutable borrow of an overlapping place is
in use.

    m = &mut v
    r = &v                  // error
    call push(recv *m, 1)

Finish using m before reading v, or read through m instead.
`,
	diag.BorrowTwoPhaseConflict: `
A two-phase borrow was activated while another borrow of the same place is
still in use.

    t = &2ph v
    r = &v
    call push(recv *t, copy r)  // error: t activates while r is live

A two-phase borrow starts as a reservation that tolerates shared reads and
becomes a mutable borrow at its first use. Borrows taken during the
reservation must be dead by then. A reservation carried around a loop is
treated as active from the loop's back edge on.
`,
	diag.BorrowReadWhileMutBorrowed: `
A value was read directly while a mutable borrow of it is in use.

    m = &mut v
    call print(copy v)      // error
    call push(recv *m, 1)

Read through the mutable reference, or end its use first.
`,
	diag.BorrowClosureConflict: `
A closure capture conflicts with a borrow that is still in use, or a value
captured by mutable reference is used while the closure is alive.

    r = &mut v
    k = closure [ref v]     // error
    call use(copy r, copy k)

Captures by reference are borrows that live as long as the closure is used.
`,
	diag.BorrowReturnLocalRef: `
A function returns a reference into its own local storage.

    s = struct (v: "x")
    r = &s
    return copy r           // error: s is destroyed on return

Return an owned value, or return a reference derived from a reference
parameter.
`,
	diag.BorrowOutlivesOwner: `
A borrowed local goes out of scope while a reference to it is still used.

    scope_enter 1
    s = struct (v: "x")
    r = &s
    scope_exit 1            // error: s dies here
    call print(copy r)

Declare the owner in an enclosing scope or stop using the reference before
the scope ends.
`,
	diag.BorrowMalformedScopes: `
The scope structure of the input CFG is inconsistent: a scope was exited
without being entered, exited out of order, or paths joining at a block
disagree on the open scopes.

This is an internal error of the CFG builder, not a problem in the analyzed
program. No drop schedule can be computed and code generation must stop.
`,
}

// Lookup returns the explanation for code.
func Lookup(code diag.Code) (string, bool) {
	text, ok := texts[code]
	return strings.TrimPrefix(text, "\n"), ok
}

// Render formats the full explanation with its header.
func Render(code diag.Code) (string, error) {
	text, ok := Lookup(code)
	if !ok {
		return "", fmt.Errorf("no explanation for %s", code.ID())
	}
	return fmt.Sprintf("%s: %s (%s)\n\n%s", code.ID(), code.Title(), code.Kind(), text), nil
}
