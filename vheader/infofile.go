package vheader

import (
	"fmt"
	"strings"

	"xmount/reader"
)

const infoPrelude = "The following values have been extracted from the input image's metadata:\n"

// BuildInfoFile renders the static info file text: the prelude, followed
// for EWF inputs by one "<label>: <value>" line per header value in a
// fixed order. Non-EWF inputs (or an EWF reader that reported no values)
// produce just the prelude.
func BuildInfoFile(ewf *reader.EWFHeaderValues) []byte {
	var b strings.Builder
	b.WriteString(infoPrelude)

	if ewf != nil {
		writeLine := func(label, value string) {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
		writeLine("Case number", ewf.CaseNumber)
		writeLine("Description", ewf.Description)
		writeLine("Examiner", ewf.Examiner)
		writeLine("Evidence number", ewf.EvidenceNumber)
		writeLine("Notes", ewf.Notes)
		writeLine("Acquiry date", ewf.AcquiryDate)
		writeLine("System date", ewf.SystemDate)
		writeLine("Acquiry operating system", ewf.AcquiryOperatingSystem)
		writeLine("Acquiry software version", ewf.AcquirySoftwareVersion)
		writeLine("MD5 hash", ewf.MD5Hash)
		writeLine("SHA1 hash", ewf.SHA1Hash)
	}

	return []byte(b.String())
}
