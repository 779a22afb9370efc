package domain

import (
	"strconv"
	"strings"
	"time"
)

// Partition is an isolated editing scope. Each weekday owns one ordered record set.
type Partition string

const (
	Sunday    Partition = "Zondag"
	Monday    Partition = "Maandag"
	Tuesday   Partition = "Dinsdag"
	Wednesday Partition = "Woensdag"
	Thursday  Partition = "Donderdag"
	Friday    Partition = "Vrijdag"
	Saturday  Partition = "Zaterdag"
)

// TodaySlug resolves to the partition of the current weekday.
const TodaySlug = "vandaag"

var weekdayPartitions = [7]Partition{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// PartitionForWeekday maps a weekday onto its partition.
func PartitionForWeekday(day time.Weekday) Partition {
	return weekdayPartitions[day]
}

// Partitions lists every partition, Monday first.
func Partitions() []Partition {
	return []Partition{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// ParsePartition resolves a slug such as "dinsdag", "/dinsdag/" or "vandaag".
// Unknown slugs fall back to Monday.
func ParsePartition(slug string, now time.Time) Partition {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(slug), "/"))
	if s == TodaySlug {
		return PartitionForWeekday(now.Weekday())
	}
	for _, p := range weekdayPartitions {
		if strings.ToLower(string(p)) == s {
			return p
		}
	}
	return Monday
}

// Slug returns the lowercase URL form of the partition.
func (p Partition) Slug() string {
	return strings.ToLower(string(p))
}

// Record is one exercise row. Position is 1-based and contiguous within a partition.
// ID is a local identity that survives reorders; it never leaves the process.
type Record struct {
	ID        string    `json:"-"`
	Partition Partition `json:"day"`
	Position  int       `json:"exercise_index"`
	Name      *string   `json:"exercise_name"`
	Note      *string   `json:"note"`
	Sets      *int      `json:"sets"`
	Reps      *int      `json:"reps"`
	Weight    *int      `json:"weight"`
}

// Field names an editable record column using its remote column name.
type Field string

const (
	FieldName   Field = "exercise_name"
	FieldNote   Field = "note"
	FieldSets   Field = "sets"
	FieldReps   Field = "reps"
	FieldWeight Field = "weight"
)

// Fields lists the editable fields in display order.
func Fields() []Field {
	return []Field{FieldName, FieldNote, FieldSets, FieldReps, FieldWeight}
}

// ParseField accepts a column name or a short alias.
func ParseField(name string) (Field, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exercise_name", "name":
		return FieldName, true
	case "note":
		return FieldNote, true
	case "sets":
		return FieldSets, true
	case "reps":
		return FieldReps, true
	case "weight", "gewicht":
		return FieldWeight, true
	}
	return "", false
}

// Set applies raw form input to a field. Text is trimmed, empty input becomes
// null and numeric fields that do not parse become null.
// It reports whether the field ended up null.
func (r *Record) Set(field Field, raw string) bool {
	switch field {
	case FieldName:
		r.Name = textValue(raw)
		return r.Name == nil
	case FieldNote:
		r.Note = textValue(raw)
		return r.Note == nil
	case FieldSets:
		r.Sets = intValue(raw)
		return r.Sets == nil
	case FieldReps:
		r.Reps = intValue(raw)
		return r.Reps == nil
	case FieldWeight:
		r.Weight = intValue(raw)
		return r.Weight == nil
	}
	return false
}

// Value renders a field for display; null renders as "".
func (r Record) Value(field Field) string {
	switch field {
	case FieldName:
		return deref(r.Name)
	case FieldNote:
		return deref(r.Note)
	case FieldSets:
		return derefInt(r.Sets)
	case FieldReps:
		return derefInt(r.Reps)
	case FieldWeight:
		return derefInt(r.Weight)
	}
	return ""
}

// Clone returns a deep copy so snapshots never alias live records.
func (r Record) Clone() Record {
	out := r
	out.Name = cloneString(r.Name)
	out.Note = cloneString(r.Note)
	out.Sets = cloneInt(r.Sets)
	out.Reps = cloneInt(r.Reps)
	out.Weight = cloneInt(r.Weight)
	return out
}

// Renumber returns deep copies of records with positions 1..N in slice order.
func Renumber(partition Partition, records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		c := rec.Clone()
		c.Partition = partition
		c.Position = i + 1
		out[i] = c
	}
	return out
}

// IntPtr is a convenience for building records.
func IntPtr(v int) *int { return &v }

// StringPtr is a convenience for building records.
func StringPtr(v string) *string { return &v }

func textValue(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}

func intValue(raw string) *int {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
