package types

// BuiltinID identifies one built-in method implementation in the VM. The
// checker resolves `recv.method(...)` on built-in types to one of these and
// the compiler emits it as a fixed opcode operand, so the set here, the
// signature table and the VM implementations must stay in sync.
type BuiltinID int

const (
	BuiltinPrefixLen BuiltinID = iota
	BuiltinPrefixAddress
	BuiltinPrefixCovers
	BuiltinPrefixContainsAddr
	BuiltinAsPathOrigin
	BuiltinAsPathContains
	BuiltinAsPathLen
	BuiltinCommunityAsn
	BuiltinCommunityValue
	BuiltinListContains
	BuiltinListLen
	BuiltinStringLen
	BuiltinPrefixLengthInt
	BuiltinAsnInt

	NumBuiltins // must stay last
)

var builtinNames = map[BuiltinID]string{
	BuiltinPrefixLen:          "Prefix.len",
	BuiltinPrefixAddress:      "Prefix.address",
	BuiltinPrefixCovers:       "Prefix.covers",
	BuiltinPrefixContainsAddr: "Prefix.contains",
	BuiltinAsPathOrigin:       "AsPath.origin",
	BuiltinAsPathContains:     "AsPath.contains",
	BuiltinAsPathLen:          "AsPath.len",
	BuiltinCommunityAsn:       "Community.asn",
	BuiltinCommunityValue:     "Community.value",
	BuiltinListContains:       "List.contains",
	BuiltinListLen:            "List.len",
	BuiltinStringLen:          "String.len",
	BuiltinPrefixLengthInt:    "PrefixLength.int",
	BuiltinAsnInt:             "Asn.int",
}

func (id BuiltinID) String() string { return builtinNames[id] }

// BuiltinMethod is one resolved built-in method signature.
type BuiltinMethod struct {
	ID     BuiltinID
	Name   string
	Params []Type
	Return Type
}

var primitiveMethods = map[Kind][]BuiltinMethod{
	KindPrefix: {
		{ID: BuiltinPrefixLen, Name: "len", Return: PrefixLength},
		{ID: BuiltinPrefixAddress, Name: "address", Return: IpAddr},
		{ID: BuiltinPrefixCovers, Name: "covers", Params: []Type{Prefix}, Return: Bool},
		{ID: BuiltinPrefixContainsAddr, Name: "contains", Params: []Type{IpAddr}, Return: Bool},
	},
	KindAsPath: {
		{ID: BuiltinAsPathOrigin, Name: "origin", Return: Asn},
		{ID: BuiltinAsPathContains, Name: "contains", Params: []Type{Asn}, Return: Bool},
		{ID: BuiltinAsPathLen, Name: "len", Return: Int},
	},
	KindCommunity: {
		{ID: BuiltinCommunityAsn, Name: "asn", Return: Int},
		{ID: BuiltinCommunityValue, Name: "value", Return: Int},
	},
	KindString: {
		{ID: BuiltinStringLen, Name: "len", Return: Int},
	},
	KindPrefixLength: {
		{ID: BuiltinPrefixLengthInt, Name: "int", Return: Int},
	},
	KindAsn: {
		{ID: BuiltinAsnInt, Name: "int", Return: Int},
	},
}

// LookupBuiltinMethod resolves a method call on a built-in receiver type.
// List methods are instantiated per element type.
func LookupBuiltinMethod(recv Type, name string) (BuiltinMethod, bool) {
	switch t := recv.(type) {
	case *Primitive:
		for _, m := range primitiveMethods[t.Kind] {
			if m.Name == name {
				return m, true
			}
		}
	case *List:
		switch name {
		case "contains":
			return BuiltinMethod{
				ID: BuiltinListContains, Name: "contains",
				Params: []Type{t.Elem}, Return: Bool,
			}, true
		case "len":
			return BuiltinMethod{ID: BuiltinListLen, Name: "len", Return: Int}, true
		}
	}
	return BuiltinMethod{}, false
}
