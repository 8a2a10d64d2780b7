package prompt

// 每个模板只有一个占位符 {codebase}，其余文本不能出现花括号

const systemPrompt = `You are a senior software engineer and technical writer.
You receive the full contents of a source repository, flattened into a single text file by a packaging tool.
Base every statement strictly on that content. Do not invent files, commands, services or versions that are not present.`

const readmeTemplate = `Write a complete README.md for the repository below.

Requirements:
1. Start with the project name as a level-1 heading and a one-paragraph summary of what the project does.
2. Add sections for Features, Tech Stack, Project Structure, Getting Started (prerequisites, installation, configuration, running), Usage, and Testing when the repository supports them.
3. Document environment variables and configuration files that the code actually reads.
4. Use fenced code blocks for shell commands and examples.
5. Output only the Markdown of the README. Do not wrap the whole answer in a code block and do not add commentary before or after it.

Repository content:
{codebase}`

const dockerfileTemplate = `Write a production-ready Dockerfile for the repository below.

Requirements:
1. Detect the language, runtime version, package manager and entrypoint from the repository content.
2. Use a multi-stage build when the project has a build step, and a small official base image for the final stage.
3. Copy dependency manifests before the source to take advantage of layer caching.
4. Run the application as a non-root user and expose the ports the application listens on.
5. Output only the Dockerfile content. Do not wrap it in a code block and do not add explanations.

Repository content:
{codebase}`

const dockerComposeTemplate = `Write a docker-compose.yml for the repository below.

Requirements:
1. Define one service for the application, built from the repository Dockerfile in the project root.
2. Add services for every backing dependency the code connects to, such as databases, caches or message brokers, using official images.
3. Wire environment variables, ports, volumes, health checks and depends_on between services.
4. Do not hard-code secrets. Reference environment variables instead.
5. Output only the YAML content. Do not wrap it in a code block and do not add explanations.

Repository content:
{codebase}`
