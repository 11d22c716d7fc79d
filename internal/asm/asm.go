package asm

import "fmt"

// Register represents architecture-specific registers.
type Register byte

// NilRegister is the only architecture-independent register, and
// can be used to indicate that no register is specified.
const NilRegister Register = 0

// ConditionalRegisterState represents architecture-specific conditional
// register's states.
type ConditionalRegisterState byte

// ConditionalRegisterStateUnset is the only architecture-independent conditional state, and
// can be used to indicate that no conditional state is specified.
const ConditionalRegisterStateUnset ConditionalRegisterState = 0

// Label identifies a code position which is not necessarily known at the time
// branch instructions referring to it are emitted.
type Label uint32

// String implements fmt.Stringer.
func (l Label) String() string {
	return fmt.Sprintf("L%d", l)
}
