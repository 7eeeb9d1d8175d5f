package retrieval

const plannerSystemPrompt = "You are a search query planner for oil well documentation. Always return valid JSON."

// plannerUserPrompt args: conversation context, question, max subqueries (twice).
const plannerUserPrompt = `You are a query planning assistant for an oil well documentation system.

Given the user query and conversation context, decompose it into focused search queries.
Each subquery should target a specific aspect of the information need.

Conversation Context:
%s

User Query: %s

Generate up to %d focused subqueries that will help answer the user's question.
Consider these aspects for oil well documentation:
- Equipment specifications and locations (equipos)
- Well production data (pozos, produccion)
- Operational issues and incidents (problemas, novedades)
- Dates and time periods (fechas, turnos)
- Specific wells or fields (yacimientos)

Return a JSON object with this structure:
{
    "subqueries": [
        {
            "query": "focused search query in Spanish matching document language",
            "intent": "what this query seeks to find",
            "filters": {}
        }
    ]
}
"filters" is optional, for example {"pozo": "LACh-1030", "equipo": "DLS-168"}.

Important:
- Use technical terms in Spanish when appropriate
- Be specific about equipment codes and well names
- Include relevant date ranges when mentioned
- Maximum %d subqueries`
