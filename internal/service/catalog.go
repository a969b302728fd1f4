package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"exam-coach/internal/config"
	"exam-coach/internal/model"
)

// Option is one accepted answer of a closed question.
type Option struct {
	Value   string
	Label   string
	Aliases []string
}

// AliasTable is the finite set of answers a step accepts.
// Matching ignores case, accents and repeated spaces.
type AliasTable struct {
	options []Option
	index   map[string]int
}

func NewAliasTable(options ...Option) AliasTable {
	t := AliasTable{options: options, index: make(map[string]int, len(options)*3)}
	for i, opt := range options {
		for _, key := range append([]string{opt.Value, opt.Label}, opt.Aliases...) {
			if k := fold(key); k != "" {
				if _, taken := t.index[k]; !taken {
					t.index[k] = i
				}
			}
		}
	}
	return t
}

// Match resolves free text or a button value to an option.
func (t AliasTable) Match(input string) (Option, bool) {
	i, ok := t.index[fold(input)]
	if !ok {
		return Option{}, false
	}
	return t.options[i], true
}

// Accepted lists the display labels, used in validation errors.
func (t AliasTable) Accepted() []string {
	out := make([]string, len(t.options))
	for i, opt := range t.options {
		out[i] = opt.Label
	}
	return out
}

func (t AliasTable) Options() []Option {
	return append([]Option(nil), t.options...)
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

var TrackTable = NewAliasTable(
	Option{Value: model.TrackFederal, Label: "Federal", Aliases: []string{"nacional", "uniao", "fed"}},
	Option{Value: model.TrackState, Label: "Estadual", Aliases: []string{"estado", "est"}},
	Option{Value: model.TrackMunicipal, Label: "Municipal", Aliases: []string{"prefeitura", "municipio", "mun"}},
)

var StateTable = NewAliasTable(
	Option{Value: "AC", Label: "Acre"},
	Option{Value: "AL", Label: "Alagoas"},
	Option{Value: "AP", Label: "Amapá"},
	Option{Value: "AM", Label: "Amazonas"},
	Option{Value: "BA", Label: "Bahia"},
	Option{Value: "CE", Label: "Ceará"},
	Option{Value: "DF", Label: "Distrito Federal"},
	Option{Value: "ES", Label: "Espírito Santo"},
	Option{Value: "GO", Label: "Goiás"},
	Option{Value: "MA", Label: "Maranhão"},
	Option{Value: "MT", Label: "Mato Grosso"},
	Option{Value: "MS", Label: "Mato Grosso do Sul"},
	Option{Value: "MG", Label: "Minas Gerais", Aliases: []string{"minas"}},
	Option{Value: "PA", Label: "Pará"},
	Option{Value: "PB", Label: "Paraíba"},
	Option{Value: "PR", Label: "Paraná"},
	Option{Value: "PE", Label: "Pernambuco"},
	Option{Value: "PI", Label: "Piauí"},
	Option{Value: "RJ", Label: "Rio de Janeiro"},
	Option{Value: "RN", Label: "Rio Grande do Norte"},
	Option{Value: "RS", Label: "Rio Grande do Sul"},
	Option{Value: "RO", Label: "Rondônia"},
	Option{Value: "RR", Label: "Roraima"},
	Option{Value: "SC", Label: "Santa Catarina"},
	Option{Value: "SP", Label: "São Paulo"},
	Option{Value: "SE", Label: "Sergipe"},
	Option{Value: "TO", Label: "Tocantins"},
)

var MunicipalityTable = NewAliasTable(
	Option{Value: "sao-paulo", Label: "São Paulo", Aliases: []string{"sp", "sampa", "sao paulo/sp"}},
	Option{Value: "rio-de-janeiro", Label: "Rio de Janeiro", Aliases: []string{"rj", "rio", "rio de janeiro/rj"}},
	Option{Value: "belo-horizonte", Label: "Belo Horizonte", Aliases: []string{"bh", "belo horizonte/mg"}},
	Option{Value: "brasilia", Label: "Brasília", Aliases: []string{"bsb", "df"}},
	Option{Value: "salvador", Label: "Salvador", Aliases: []string{"ssa"}},
	Option{Value: "fortaleza", Label: "Fortaleza", Aliases: []string{"for"}},
	Option{Value: "recife", Label: "Recife", Aliases: []string{"rec"}},
	Option{Value: "porto-alegre", Label: "Porto Alegre", Aliases: []string{"poa"}},
	Option{Value: "curitiba", Label: "Curitiba", Aliases: []string{"cwb"}},
	Option{Value: "manaus", Label: "Manaus", Aliases: []string{"mao"}},
	Option{Value: "belem", Label: "Belém", Aliases: []string{"bel"}},
	Option{Value: "goiania", Label: "Goiânia", Aliases: []string{"gyn"}},
	Option{Value: "florianopolis", Label: "Florianópolis", Aliases: []string{"floripa", "fln"}},
	Option{Value: "vitoria", Label: "Vitória", Aliases: []string{"vix"}},
	Option{Value: "natal", Label: "Natal", Aliases: []string{"nat"}},
	Option{Value: "joao-pessoa", Label: "João Pessoa", Aliases: []string{"jpa"}},
	Option{Value: "maceio", Label: "Maceió", Aliases: []string{"mcz"}},
	Option{Value: "aracaju", Label: "Aracaju", Aliases: []string{"aju"}},
	Option{Value: "teresina", Label: "Teresina", Aliases: []string{"the"}},
	Option{Value: "sao-luis", Label: "São Luís", Aliases: []string{"slz"}},
	Option{Value: "campo-grande", Label: "Campo Grande", Aliases: []string{"cgr"}},
	Option{Value: "cuiaba", Label: "Cuiabá", Aliases: []string{"cgb"}},
	Option{Value: "campinas", Label: "Campinas", Aliases: []string{"cps"}},
)

var LevelTable = NewAliasTable(
	Option{Value: "beginner", Label: "Iniciante", Aliases: []string{"basico", "comecando"}},
	Option{Value: "intermediate", Label: "Intermediário", Aliases: []string{"medio", "inter"}},
	Option{Value: "advanced", Label: "Avançado", Aliases: []string{"avancado", "experiente"}},
)

var TimeToExamTable = NewAliasTable(
	Option{Value: "lt1m", Label: "Menos de 1 mês", Aliases: []string{"< 1 mes"}},
	Option{Value: "1to3m", Label: "1 a 3 meses", Aliases: []string{"1-3 meses"}},
	Option{Value: "3to6m", Label: "3 a 6 meses", Aliases: []string{"3-6 meses"}},
	Option{Value: "gt6m", Label: "Mais de 6 meses", Aliases: []string{"> 6 meses"}},
	Option{Value: "unknown", Label: "Ainda sem data", Aliases: []string{"sem data", "nao sei"}},
)

var SlotTable = NewAliasTable(
	Option{Value: config.SlotMorning, Label: "Manhã", Aliases: []string{"manha", "cedo"}},
	Option{Value: config.SlotAfternoon, Label: "Tarde"},
	Option{Value: config.SlotEvening, Label: "Noite", Aliases: []string{"a noite"}},
)

// Terminators of the repeatable topic steps.
var topicTerminators = NewAliasTable(
	Option{Value: topicDone, Label: "Concluir", Aliases: []string{"pronto", "ok", "fim", "done"}},
	Option{Value: topicNone, Label: "Nenhuma", Aliases: []string{"nenhum", "nada", "none"}},
)

const (
	topicDone = "done"
	topicNone = "none"
)

// fallbackRoles is offered when the track has no role catalog.
var fallbackRoles = []string{
	"Agente Administrativo",
	"Analista",
	"Assistente Administrativo",
	"Auditor Fiscal",
	"Professor",
	"Técnico",
}

// fallbackTopics is offered when no lesson declares a topic yet.
var fallbackTopics = []string{
	"Atualidades",
	"Direito Administrativo",
	"Direito Constitucional",
	"Informática",
	"Língua Portuguesa",
	"Matemática",
	"Raciocínio Lógico",
}

// regionTableFor returns the free-text table of a track, or false for nationwide tracks.
func regionTableFor(track string) (AliasTable, bool) {
	switch track {
	case model.TrackState:
		return StateTable, true
	case model.TrackMunicipal:
		return MunicipalityTable, true
	default:
		return AliasTable{}, false
	}
}

// matchName finds input among names, returning the catalog spelling.
func matchName(names []string, input string) (string, bool) {
	key := fold(input)
	if key == "" {
		return "", false
	}
	for _, name := range names {
		if fold(name) == key {
			return name, true
		}
	}
	return "", false
}
