package endeavor

import (
	"fmt"
	"strings"
	"time"

	"endeavor-cli/lib/timezone"
)

// date format used on the timeline page, e.g. "05-Jan-2024"
const dateLayout = "02-Jan-2006"

// Entry is one pending timesheet unit of work on the portal. Entries
// are built by ParseEntry from scraped text and never mutated after.
type Entry struct {
	ID            string
	Date          time.Time
	Customer      string
	ProjectNumber string
}

// ParseEntry builds an Entry from the "<id> - <date>" text of an entry
// container and the project info text fragments, which must hold
// exactly the customer followed by the project number.
func ParseEntry(idDate string, projectInfo []string) (Entry, error) {
	id, date, found := strings.Cut(idDate, " - ")
	if !found {
		return Entry{}, fmt.Errorf("text ' - ' not found in: %q", idDate)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Entry{}, fmt.Errorf("empty id in: %q", idDate)
	}

	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), timezone.Location)
	if err != nil {
		return Entry{}, fmt.Errorf("could not parse date %q: %w", date, err)
	}

	if len(projectInfo) != 2 {
		return Entry{}, fmt.Errorf(
			"found %d items when parsing the project info text, expected 2: %q",
			len(projectInfo), projectInfo,
		)
	}

	return Entry{
		ID:            id,
		Date:          parsed,
		Customer:      projectInfo[0],
		ProjectNumber: projectInfo[1],
	}, nil
}

func (e Entry) String() string {
	return fmt.Sprintf(
		"%s (%s) -- #%s | %s",
		e.Date.Format("02/Jan/2006"), e.Customer, e.ID, e.ProjectNumber,
	)
}
