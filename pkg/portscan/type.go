package portscan

type CandidatePort struct {
	Port        string `json:"port"`
	Description string `json:"description"`
}

// DefaultMarkers match the USB-serial bridges the sensor controllers ship with.
var DefaultMarkers = []string{"Arduino", "CH340", "USB Serial"}

// Bridge chip names by USB vendor id (upper case hex).
var knownVendors = map[string]string{
	"2341": "Arduino",
	"2A03": "Arduino",
	"1A86": "CH340",
	"0403": "FTDI",
	"10C4": "CP210x",
	"067B": "PL2303",
}
