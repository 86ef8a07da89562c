// Package traits models the trait-sheet writes a spend approval performs. Each
// trait type is its own variant with a fixed name set and rating range.
package traits

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/chronicle/pkg/enums"
	pkgerrors "github.com/angelmondragon/chronicle/pkg/errors"
)

// Update is a validated write of one rating to a character sheet.
type Update interface {
	TraitType() enums.TraitType
	TraitName() string
	Rating() int
	Validate() error
	sealed()
}

// Attribute is a physical, social or mental attribute rated 1 to 5.
type Attribute struct {
	Name  string
	Value int
}

// Ability is a talent, skill or knowledge rated 0 to 5.
type Ability struct {
	Name  string
	Value int
}

// Background is a social or material advantage rated 0 to 5.
type Background struct {
	Name  string
	Value int
}

// Discipline is a supernatural power rated 0 to 5.
type Discipline struct {
	Name  string
	Value int
}

// Willpower is the single willpower rating, 1 to 10.
type Willpower struct {
	Value int
}

type bounds struct {
	min, max int
}

var (
	attributeNames = nameSet(
		"strength", "dexterity", "stamina",
		"charisma", "manipulation", "appearance",
		"perception", "intelligence", "wits",
	)
	abilityNames = nameSet(
		"alertness", "athletics", "awareness", "brawl", "empathy", "expression",
		"intimidation", "leadership", "streetwise", "subterfuge",
		"animal_ken", "crafts", "drive", "etiquette", "firearms", "larceny",
		"melee", "performance", "stealth", "survival",
		"academics", "computer", "finance", "investigation", "law",
		"medicine", "occult", "politics", "science", "technology",
	)
	backgroundNames = nameSet(
		"allies", "alternate_identity", "contacts", "domain", "fame",
		"generation", "herd", "influence", "mentor", "resources",
		"retainers", "status",
	)
	disciplineNames = nameSet(
		"animalism", "auspex", "celerity", "chimerstry", "dementation",
		"dominate", "fortitude", "necromancy", "obfuscate", "obtenebration",
		"potence", "presence", "protean", "quietus", "serpentis",
		"thaumaturgy", "vicissitude",
	)
	willpowerNames = nameSet("willpower")
)

var (
	attributeBounds  = bounds{min: 1, max: 5}
	abilityBounds    = bounds{min: 0, max: 5}
	backgroundBounds = bounds{min: 0, max: 5}
	disciplineBounds = bounds{min: 0, max: 5}
	willpowerBounds  = bounds{min: 1, max: 10}
)

func nameSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (a Attribute) TraitType() enums.TraitType { return enums.TraitTypeAttribute }
func (a Attribute) TraitName() string          { return a.Name }
func (a Attribute) Rating() int                { return a.Value }
func (a Attribute) Validate() error {
	return check(enums.TraitTypeAttribute, attributeNames, attributeBounds, a.Name, a.Value)
}
func (Attribute) sealed() {}

func (a Ability) TraitType() enums.TraitType { return enums.TraitTypeAbility }
func (a Ability) TraitName() string          { return a.Name }
func (a Ability) Rating() int                { return a.Value }
func (a Ability) Validate() error {
	return check(enums.TraitTypeAbility, abilityNames, abilityBounds, a.Name, a.Value)
}
func (Ability) sealed() {}

func (b Background) TraitType() enums.TraitType { return enums.TraitTypeBackground }
func (b Background) TraitName() string          { return b.Name }
func (b Background) Rating() int                { return b.Value }
func (b Background) Validate() error {
	return check(enums.TraitTypeBackground, backgroundNames, backgroundBounds, b.Name, b.Value)
}
func (Background) sealed() {}

func (d Discipline) TraitType() enums.TraitType { return enums.TraitTypeDiscipline }
func (d Discipline) TraitName() string          { return d.Name }
func (d Discipline) Rating() int                { return d.Value }
func (d Discipline) Validate() error {
	return check(enums.TraitTypeDiscipline, disciplineNames, disciplineBounds, d.Name, d.Value)
}
func (Discipline) sealed() {}

func (w Willpower) TraitType() enums.TraitType { return enums.TraitTypeWillpower }
func (w Willpower) TraitName() string          { return "willpower" }
func (w Willpower) Rating() int                { return w.Value }
func (w Willpower) Validate() error {
	return check(enums.TraitTypeWillpower, willpowerNames, willpowerBounds, w.TraitName(), w.Value)
}
func (Willpower) sealed() {}

// NormalizeName lower-cases and trims a trait name the way it is stored.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New selects the variant for traitType and validates name and value.
func New(traitType enums.TraitType, name string, value int) (Update, error) {
	name = NormalizeName(name)
	var update Update
	switch traitType {
	case enums.TraitTypeAttribute:
		update = Attribute{Name: name, Value: value}
	case enums.TraitTypeAbility:
		update = Ability{Name: name, Value: value}
	case enums.TraitTypeBackground:
		update = Background{Name: name, Value: value}
	case enums.TraitTypeDiscipline:
		update = Discipline{Name: name, Value: value}
	case enums.TraitTypeWillpower:
		if name != "willpower" {
			return nil, unknownName(traitType, name)
		}
		update = Willpower{Value: value}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown trait type %q", traitType)).
			WithDetails(map[string]string{"trait_type": "must be a known trait type"})
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}
	return update, nil
}

// ValidateName checks that name belongs to traitType without looking at a value.
func ValidateName(traitType enums.TraitType, name string) error {
	names, ok := namesFor(traitType)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown trait type %q", traitType)).
			WithDetails(map[string]string{"trait_type": "must be a known trait type"})
	}
	name = NormalizeName(name)
	if _, ok := names[name]; !ok {
		return unknownName(traitType, name)
	}
	return nil
}

func namesFor(traitType enums.TraitType) (map[string]struct{}, bool) {
	switch traitType {
	case enums.TraitTypeAttribute:
		return attributeNames, true
	case enums.TraitTypeAbility:
		return abilityNames, true
	case enums.TraitTypeBackground:
		return backgroundNames, true
	case enums.TraitTypeDiscipline:
		return disciplineNames, true
	case enums.TraitTypeWillpower:
		return willpowerNames, true
	}
	return nil, false
}

func check(traitType enums.TraitType, names map[string]struct{}, b bounds, name string, value int) error {
	if _, ok := names[name]; !ok {
		return unknownName(traitType, name)
	}
	if value < b.min || value > b.max {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s %s must be between %d and %d", traitType, name, b.min, b.max)).
			WithDetails(map[string]string{"trait_value": fmt.Sprintf("must be between %d and %d", b.min, b.max)})
	}
	return nil
}

func unknownName(traitType enums.TraitType, name string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%q is not a known %s", name, traitType)).
		WithDetails(map[string]string{"trait_name": fmt.Sprintf("must be a known %s", traitType)})
}
