package accounts

import (
	"fmt"
	"strconv"
	"strings"
)

// RecordFields is the number of pipe-delimited fields in one persisted
// account record: identity pair, nine stand-sheet fields, eighteen
// user-sheet fields.
const RecordFields = 29

// StandSheet is the stand half of a character: a name, free-text type tags,
// an ability description, and six stat axes.
type StandSheet struct {
	Name        string
	Types       string
	AbilityDesc string
	Speed       int
	Power       int
	Range       int
	Precision   int
	Durability  int
	Learning    int
}

// UserSheet is the stand user's biographical and gameplay sheet. Weight and
// height stay free text; CurrentHealth is never validated against
// TotalHealth.
type UserSheet struct {
	Name          string
	PlayerName    string
	Gender        string
	Weight        string
	Height        string
	BloodType     string
	Occupation    string
	Nationality   string
	Backstory     string
	Inventory     string
	Brains        int
	Brawns        int
	Bravery       int
	Age           int
	TotalHealth   int
	CurrentHealth int
	ResolveDamage int
	BizarrePoints int
}

// Account pairs a unique username and its password digest with the two
// character-sheet documents.
type Account struct {
	Name  string
	Pass  string
	Stand StandSheet
	User  UserSheet
}

// NewAccount returns an account provisioned with the placeholder defaults
// written for a first-time login.
func NewAccount(name, pass string) Account {
	return Account{
		Name: name,
		Pass: pass,
		Stand: StandSheet{
			Name:        "enter a name",
			Types:       "stand type",
			AbilityDesc: "stand ability description",
		},
		User: UserSheet{
			Name:        "enter a name",
			PlayerName:  "player name",
			Gender:      "gender",
			Weight:      "weight",
			Height:      "height",
			BloodType:   "bloodType",
			Occupation:  "occupation",
			Nationality: "nationality",
			Backstory:   "backstory",
			Inventory:   "inventory",
		},
	}
}

// Fields renders the account as its ordered wire/record fields. The same
// 29-field layout serves the store record, the login_success/login_created
// payload, and the update_account command body.
func (a Account) Fields() []string {
	return []string{
		a.Name,
		a.Pass,
		a.Stand.Name,
		a.Stand.Types,
		a.Stand.AbilityDesc,
		strconv.Itoa(a.Stand.Speed),
		strconv.Itoa(a.Stand.Power),
		strconv.Itoa(a.Stand.Range),
		strconv.Itoa(a.Stand.Precision),
		strconv.Itoa(a.Stand.Durability),
		strconv.Itoa(a.Stand.Learning),
		a.User.Name,
		a.User.PlayerName,
		a.User.Gender,
		a.User.Weight,
		a.User.Height,
		a.User.BloodType,
		a.User.Occupation,
		a.User.Nationality,
		a.User.Backstory,
		a.User.Inventory,
		strconv.Itoa(a.User.Brains),
		strconv.Itoa(a.User.Brawns),
		strconv.Itoa(a.User.Bravery),
		strconv.Itoa(a.User.Age),
		strconv.Itoa(a.User.TotalHealth),
		strconv.Itoa(a.User.CurrentHealth),
		strconv.Itoa(a.User.ResolveDamage),
		strconv.Itoa(a.User.BizarrePoints),
	}
}

// EncodeRecord renders one account store line.
func EncodeRecord(a Account) string {
	return strings.Join(a.Fields(), "|")
}

// ParseFields decodes the 29-field layout back into an Account. A short
// field list or a non-numeric stat is an error for the whole record.
func ParseFields(fields []string) (Account, error) {
	if len(fields) < RecordFields {
		return Account{}, fmt.Errorf("account record has %d fields, want %d", len(fields), RecordFields)
	}

	var a Account
	a.Name = fields[0]
	a.Pass = fields[1]
	a.Stand.Name = fields[2]
	a.Stand.Types = fields[3]
	a.Stand.AbilityDesc = fields[4]

	ints := []struct {
		dst *int
		idx int
	}{
		{&a.Stand.Speed, 5},
		{&a.Stand.Power, 6},
		{&a.Stand.Range, 7},
		{&a.Stand.Precision, 8},
		{&a.Stand.Durability, 9},
		{&a.Stand.Learning, 10},
		{&a.User.Brains, 21},
		{&a.User.Brawns, 22},
		{&a.User.Bravery, 23},
		{&a.User.Age, 24},
		{&a.User.TotalHealth, 25},
		{&a.User.CurrentHealth, 26},
		{&a.User.ResolveDamage, 27},
		{&a.User.BizarrePoints, 28},
	}

	a.User.Name = fields[11]
	a.User.PlayerName = fields[12]
	a.User.Gender = fields[13]
	a.User.Weight = fields[14]
	a.User.Height = fields[15]
	a.User.BloodType = fields[16]
	a.User.Occupation = fields[17]
	a.User.Nationality = fields[18]
	a.User.Backstory = fields[19]
	a.User.Inventory = fields[20]

	for _, f := range ints {
		v, err := strconv.Atoi(strings.TrimSpace(fields[f.idx]))
		if err != nil {
			return Account{}, fmt.Errorf("account field %d: %q is not an integer", f.idx+1, fields[f.idx])
		}
		*f.dst = v
	}
	return a, nil
}

// DecodeRecord parses one store line. Records written by older builds carry
// a trailing separator; the resulting empty field is tolerated.
func DecodeRecord(line string) (Account, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Account{}, fmt.Errorf("empty account record")
	}
	return ParseFields(strings.Split(line, "|"))
}
