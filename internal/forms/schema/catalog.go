package schema

import (
	"github.com/shopspring/decimal"

	id "prequal/pkg/domain"
	derrors "prequal/pkg/domain-errors"
)

var (
	zero    = decimal.NewFromInt(0)
	hundred = decimal.NewFromInt(100)
)

func text(name string) FieldDef     { return FieldDef{Name: name, Type: TypeText} }
func date(name string) FieldDef     { return FieldDef{Name: name, Type: TypeDate} }
func money(name string) FieldDef    { return FieldDef{Name: name, Type: TypeDecimal, Min: &zero} }
func count(name string) FieldDef    { return FieldDef{Name: name, Type: TypeInt, Min: &zero} }
func required(f FieldDef) FieldDef  { f.Required = true; return f }
func staleness(f FieldDef) FieldDef { f.HighStaleness = true; return f }

func percent(name string) FieldDef {
	return FieldDef{Name: name, Type: TypeDecimal, Min: &zero, Max: &hundred, HighStaleness: true}
}

func enum(name string, values ...string) FieldDef {
	return FieldDef{Name: name, Type: TypeEnum, Enum: values}
}

func choice(name string, kind TemplateKind) FieldDef {
	return FieldDef{Name: name, Type: TypeTemplateChoice, Templates: kind}
}

// Catalog is the fixed form sequence. Index by form number via Form().
var Catalog = []FormDef{
	{
		Number:     id.FormCompletedProjects,
		Slug:       "completed-projects",
		RecordName: "completed_project",
		Fields: []FieldDef{
			required(enum("project_field", "Similar", "Related", "Other")),
			text("contract_number"),
			date("contract_signing_date"),
			text("client_name"),
			text("client_representative_name"),
			text("client_phone"),
			text("project_title"),
			text("project_description"),
			date("contract_start_date"),
			date("contract_completion_date"),
			money("contract_value_sar"),
		},
		SingletonDocTypes: []string{"completion_certificate"},
		Precondition:      RequireRecords,
	},
	{
		Number:     id.FormOngoingProjects,
		Slug:       "ongoing-projects",
		RecordName: "ongoing_project",
		Fields: []FieldDef{
			required(enum("project_field", "Similar", "Related", "Other")),
			text("contract_number"),
			date("contract_signing_date"),
			required(text("client_name")),
			required(text("project_title")),
			text("project_description"),
			date("contract_start_date"),
			date("contract_completion_date"),
			staleness(money("contract_value_sar")),
			percent("percent_completion"),
			money("completed_value_sar"),
		},
		Derived: []DerivedDef{{
			Target:       "completed_value_sar",
			ValueInput:   "contract_value_sar",
			PercentInput: "percent_completion",
		}},
		Precondition: RequireRecords,
	},
	{
		Number:     id.FormProjectProfiles,
		Slug:       "project-profiles",
		RecordName: "project_profile",
		Fields: []FieldDef{
			staleness(required(text("ongoing_project_id"))),
			text("contract_number"),
			date("contract_signed_date"),
			text("contract_title"),
			date("completion_date"),
			date("forecasted_completion_date"),
			text("client_name"),
			percent("percent_completion"),
			text("representative_name"),
			text("representative_position"),
			text("representative_phone"),
			count("management_count"),
			count("supervisory_count"),
			count("skilled_count"),
			count("unskilled_count"),
			text("contract_type"),
			money("contract_value_sar"),
			enum("contractor_role", "Main Contractor", "Subcontractor"),
		},
		Children: []ChildDef{
			{Name: "personnel", Fields: []FieldDef{required(text("position")), required(text("name"))}},
			{Name: "equipment", Fields: []FieldDef{required(text("equipment_name"))}},
			{Name: "materials", Fields: []FieldDef{required(text("material_name"))}},
			{Name: "subcontractors", Fields: []FieldDef{
				required(text("contractor_name")),
				text("work_description"),
				money("value_sar"),
			}},
		},
		UniqueField:  "ongoing_project_id",
		Precondition: RequireRecords,
	},
	{
		Number:     id.FormManagementPersonnel,
		Slug:       "management-personnel",
		RecordName: "management_personnel",
		Fields: []FieldDef{
			required(text("full_name")),
			required(choice("position", TemplatePositions)),
			text("nationality"),
			count("years_experience"),
			text("qualification"),
		},
		Precondition: RequireRecords,
	},
	{
		Number:     id.FormPersonnelResumes,
		Slug:       "personnel-resumes",
		RecordName: "personnel_resume",
		Fields: []FieldDef{
			staleness(required(text("personnel_id"))),
			text("summary"),
			count("total_years_experience"),
		},
		Children: []ChildDef{
			{Name: "education", Fields: []FieldDef{
				required(text("degree")),
				required(text("institution")),
				count("graduation_year"),
			}},
			{Name: "work_experience", Fields: []FieldDef{
				required(text("employer")),
				required(text("position")),
				date("start_date"),
				date("end_date"),
				text("description"),
			}},
		},
		UniqueField:       "personnel_id",
		SingletonDocTypes: []string{"resume"},
		Precondition:      RequireRecords,
	},
	{
		Number:     id.FormManpower,
		Slug:       "manpower",
		RecordName: "manpower",
		Fields: []FieldDef{
			required(choice("craft", TemplateCrafts)),
			count("total_count"),
			count("available_count"),
		},
		Precondition: RequireRecords,
	},
	{
		Number:     id.FormEquipmentTools,
		Slug:       "equipment-tools",
		RecordName: "equipment_tool",
		Fields: []FieldDef{
			required(choice("equipment_type", TemplateEquipmentTypes)),
			text("description"),
			count("quantity"),
			enum("ownership", "Owned", "Rented"),
			text("condition"),
		},
		Precondition: RequireRecords,
	},
	{
		Number:     id.FormQuestionnaire,
		Slug:       "questionnaire",
		RecordName: "questionnaire_response",
		Fields: []FieldDef{
			staleness(required(text("question_id"))),
			required(text("answer")),
			text("remarks"),
		},
		UniqueField:       "question_id",
		Precondition:      RequireAllQuestionsAnswered,
		SingletonDocTypes: nil, // questionnaire attachments may repeat
	},
}

// Form returns the schema for a form number.
func Form(n id.FormNumber) (*FormDef, error) {
	for i := range Catalog {
		if Catalog[i].Number == n {
			return &Catalog[i], nil
		}
	}
	return nil, derrors.Newf(derrors.CodeBadRequest, "unknown form number %d", n.Int())
}
