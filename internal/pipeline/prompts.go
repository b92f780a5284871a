package pipeline

// ExtractionPrompt is the instruction sent with every document.
const ExtractionPrompt = "Analyze this bank statement or financial document and extract all transactions.\n\n" +
	"Return a JSON object with a \"transactions\" array. Each transaction should have:\n" +
	"- date: ISO 8601 date string (YYYY-MM-DD)\n" +
	"- description: string describing the transaction\n" +
	"- amount: positive number (the absolute value of the transaction)\n" +
	"- type: \"CREDIT\" for money coming in, \"DEBIT\" for money going out\n" +
	"- balance: the balance after this transaction (if available, otherwise omit)\n" +
	"- category: a category for the transaction (e.g., \"Groceries\", \"Utilities\", \"Salary\", \"Transfer\", \"Entertainment\", \"Gambling\", etc.)\n\n" +
	"Rules:\n" +
	"- Keep transactions in the order they appear on the statement.\n" +
	"- Include opening and closing balance lines only if the statement prints them as rows.\n" +
	"- If the statement has separate \"paid out\" / \"paid in\" columns, use them to set \"type\".\n\n" +
	"Return ONLY valid JSON, no other text. If you cannot extract any transactions, return: {\"transactions\": []}\n\n" +
	"Example response:\n" +
	"{\n" +
	"  \"transactions\": [\n" +
	"    {\"date\": \"2024-01-15\", \"description\": \"TESCO STORES\", \"amount\": 45.67, \"type\": \"DEBIT\", \"balance\": 1234.56, \"category\": \"Groceries\"},\n" +
	"    {\"date\": \"2024-01-14\", \"description\": \"SALARY ACME INC\", \"amount\": 2500.00, \"type\": \"CREDIT\", \"balance\": 1280.23, \"category\": \"Salary\"}\n" +
	"  ]\n" +
	"}"
